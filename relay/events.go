package relay

// Control event names carried over the relay channel. The server
// rebroadcasts whatever it receives under the same name, so client and
// browser agree on these strings.
const (
	EventNextSlide     = "nextSlide"
	EventPreviousSlide = "previousSlide"
	EventChangeSlide   = "changeSlide"
)

// Event is one slide-navigation control event. Slide carries the 1-based
// target index for changeSlide and is omitted for the other events.
type Event struct {
	Name  string `json:"event"`
	Slide int    `json:"slide,omitempty"`
}

// NextSlide returns a nextSlide event.
func NextSlide() Event {
	return Event{Name: EventNextSlide}
}

// PreviousSlide returns a previousSlide event.
func PreviousSlide() Event {
	return Event{Name: EventPreviousSlide}
}

// ChangeSlide returns a changeSlide event targeting slide n.
func ChangeSlide(n int) Event {
	return Event{Name: EventChangeSlide, Slide: n}
}

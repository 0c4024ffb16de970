package relay

import (
	"log/slog"
	"sync"
)

// EventWriter is the send side of one connected browser session.
type EventWriter interface {
	WriteEvent(Event) error
}

// Hub owns the set of connected sessions and rebroadcasts every received
// control event to all of them. It does not distinguish originator from
// recipients: a relay client's own event comes back to every session,
// including the originator. No event history is kept, so sessions that
// connect after a broadcast miss it entirely.
type Hub struct {
	logger *slog.Logger

	// syncOnConnect switches the bootstrap event for a new session from the
	// historical nextSlide nudge to changeSlide with the last-known index.
	syncOnConnect bool

	// deliverMu serializes bootstrap and broadcast delivery: every session
	// observes events in a single arrival order, with its own bootstrap
	// strictly first.
	deliverMu sync.Mutex

	mu           sync.Mutex
	sessions     map[string]EventWriter
	currentSlide int // last-known slide index, 0 = unknown

	// Optional instrumentation hooks.
	OnBroadcast func(Event)
	OnSessions  func(count int)
}

// NewHub creates a hub.
func NewHub(syncOnConnect bool, logger *slog.Logger) *Hub {
	return &Hub{
		logger:        logger,
		syncOnConnect: syncOnConnect,
		sessions:      make(map[string]EventWriter),
	}
}

// Register adds a session. Its bootstrap event is delivered before the
// session becomes visible to broadcasts, so no client-triggered event can
// reach it ahead of the bootstrap.
func (h *Hub) Register(id string, w EventWriter) {
	h.deliverMu.Lock()

	h.mu.Lock()
	bootstrap := NextSlide()
	if h.syncOnConnect && h.currentSlide > 0 {
		bootstrap = ChangeSlide(h.currentSlide)
	}
	h.mu.Unlock()

	if err := w.WriteEvent(bootstrap); err != nil {
		h.logger.Warn("bootstrap event failed",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}

	h.mu.Lock()
	h.sessions[id] = w
	count := len(h.sessions)
	h.mu.Unlock()

	h.deliverMu.Unlock()

	h.logger.Info("session connected", slog.String("session_id", id), slog.Int("sessions", count))
	h.notifySessions(count)
}

// Unregister removes a session.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	count := len(h.sessions)
	h.mu.Unlock()

	h.logger.Info("session disconnected", slog.String("session_id", id), slog.Int("sessions", count))
	h.notifySessions(count)
}

// HandleEvent processes one control event received from any session: update
// the slide position estimate, then rebroadcast. Delivery is synchronous on
// the calling read loop, so events from one connection reach every session
// in the order they arrived.
func (h *Hub) HandleEvent(ev Event) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	switch ev.Name {
	case EventChangeSlide:
		h.currentSlide = ev.Slide
	case EventNextSlide:
		if h.currentSlide > 0 {
			h.currentSlide++
		}
	case EventPreviousSlide:
		if h.currentSlide > 1 {
			h.currentSlide--
		}
	}
	h.mu.Unlock()

	h.broadcast(ev)
}

// Broadcast sends ev to every connected session.
func (h *Hub) Broadcast(ev Event) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()
	h.broadcast(ev)
}

// broadcast fans ev out to the current sessions. Callers hold deliverMu.
// Write failures are logged per session and do not stop the fan-out.
func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	targets := make(map[string]EventWriter, len(h.sessions))
	for id, w := range h.sessions {
		targets[id] = w
	}
	h.mu.Unlock()

	for id, w := range targets {
		if err := w.WriteEvent(ev); err != nil {
			h.logger.Warn("broadcast write failed",
				slog.String("session_id", id),
				slog.String("event", ev.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	h.logger.Info("broadcast",
		slog.String("event", ev.Name),
		slog.Int("slide", ev.Slide),
		slog.Int("sessions", len(targets)),
	)
	if h.OnBroadcast != nil {
		h.OnBroadcast(ev)
	}
}

// CurrentSlide returns the hub's last-known slide index (0 = unknown).
func (h *Hub) CurrentSlide() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentSlide
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) notifySessions(count int) {
	if h.OnSessions != nil {
		h.OnSessions(count)
	}
}

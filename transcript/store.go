package transcript

import (
	"context"
	"sync"

	"github.com/presenterkit/slidepilot/queue"
)

// Store is an in-process publish/subscribe buffer for finalized transcript
// lines. Every line published is appended to the history and fanned out to
// all subscribers registered at publish time, in publish order. Subscribers
// that join later only see lines published after they joined.
type Store struct {
	mu         sync.Mutex
	history    []string
	maxHistory int
	subs       map[uint64]*subscriber
	nextID     uint64
}

// subscriber owns a private FIFO delivery queue so that a slow reader never
// blocks Publish or other subscribers.
type subscriber struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending *queue.Queue[string]
	closed  bool
}

func newSubscriber() *subscriber {
	sub := &subscriber{pending: queue.New[string]()}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

func (sub *subscriber) push(line string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.pending.Enqueue(line)
	sub.cond.Signal()
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.closed = true
	sub.cond.Broadcast()
}

// NewStore creates a transcript store. maxHistory bounds the retained history
// to the most recent N lines; 0 means unbounded. Retention only affects the
// History snapshot, never in-flight delivery to subscribers.
func NewStore(maxHistory int) *Store {
	return &Store{
		maxHistory: maxHistory,
		subs:       make(map[uint64]*subscriber),
	}
}

// Publish appends line to the history and enqueues it on every currently
// registered subscriber queue. It returns once enqueued; it never waits for
// delivery. The lock is held across the fan-out — push never blocks — so
// every subscriber's delivery order matches history order even with
// concurrent publishers.
func (s *Store) Publish(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, line)
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	for _, sub := range s.subs {
		sub.push(line)
	}
}

// Subscribe registers a new subscriber and returns its delivery channel.
// The channel carries every line published after this call, in publish
// order. Cancelling ctx detaches the subscriber and closes the channel.
func (s *Store) Subscribe(ctx context.Context) <-chan string {
	sub := newSubscriber()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	ch := make(chan string)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.close()
	}()

	go func() {
		defer close(ch)
		for {
			sub.mu.Lock()
			for sub.pending.IsEmpty() && !sub.closed {
				sub.cond.Wait()
			}
			batch := sub.pending.DequeueAll()
			done := sub.closed
			sub.mu.Unlock()

			for _, line := range batch {
				select {
				case ch <- line:
				case <-ctx.Done():
					return
				}
			}
			if done {
				return
			}
		}
	}()

	return ch
}

// History returns a snapshot copy of the retained transcript lines.
func (s *Store) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

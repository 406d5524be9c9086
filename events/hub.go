// ABOUTME: Per-run event log with ordered fan-out to any number of subscribers and history replay.
// ABOUTME: Enforces a single terminal event per run and disconnects subscribers that fall behind.

package events

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRunClosed is returned when publishing after the terminal event.
	ErrRunClosed = errors.New("run already finished")
	// ErrRunExists is returned when creating a run id that is still tracked.
	ErrRunExists = errors.New("run already exists")
	// ErrSlowSubscriber is reported by a subscription the run dropped because
	// its buffer filled up. The reader may resubscribe from its last sequence.
	ErrSlowSubscriber = errors.New("subscriber fell behind")
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 4096

// Run is the ordered event log of one run. It is safe for concurrent use.
type Run struct {
	id     string
	buffer int

	mu         sync.Mutex
	history    []Event
	subs       map[string]*Subscription
	closed     bool
	finishedAt time.Time
	done       chan struct{}
}

// NewRun creates an empty run log.
func NewRun(id string) *Run {
	return &Run{
		id:     id,
		buffer: DefaultBuffer,
		subs:   make(map[string]*Subscription),
		done:   make(chan struct{}),
	}
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.id
}

// Publish appends an event, assigns its sequence number and delivers it to
// every subscriber. After a terminal event the run is closed: subscribers'
// channels are closed and further publishes fail with ErrRunClosed.
func (r *Run) Publish(evt Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return evt, ErrRunClosed
	}
	evt.Seq = uint64(len(r.history)) + 1
	r.history = append(r.history, evt)

	for id, sub := range r.subs {
		select {
		case sub.ch <- evt:
		default:
			// Dropping one event would break ordering, so drop the subscriber.
			log.Printf("component=events.run action=drop_subscriber run=%s sub=%s seq=%d", r.id, id, evt.Seq)
			sub.err = ErrSlowSubscriber
			close(sub.ch)
			delete(r.subs, id)
		}
	}

	if evt.Kind.Terminal() {
		r.closed = true
		r.finishedAt = time.Now()
		for id, sub := range r.subs {
			close(sub.ch)
			delete(r.subs, id)
		}
		close(r.done)
	}
	return evt, nil
}

// Subscribe returns the events after sequence number after, followed by a
// live subscription. When the run has already finished the subscription's
// channel is closed and history holds everything the reader needs.
func (r *Run) Subscribe(after uint64) ([]Event, *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var history []Event
	if after < uint64(len(r.history)) {
		history = append(history, r.history[after:]...)
	}

	sub := &Subscription{
		ID:  uuid.NewString(),
		run: r,
		ch:  make(chan Event, r.buffer),
	}
	sub.C = sub.ch
	if r.closed {
		close(sub.ch)
		return history, sub
	}
	r.subs[sub.ID] = sub
	return history, sub
}

// History returns a copy of every event published so far.
func (r *Run) History() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.history...)
}

// Closed reports whether the terminal event has been published.
func (r *Run) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Done is closed once the terminal event has been published.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.ID]; ok {
		delete(r.subs, sub.ID)
		close(sub.ch)
	}
}

// Subscription is one reader's live view of a run.
type Subscription struct {
	ID string
	// C delivers events in publish order and is closed after the terminal
	// event, on Close, or when the subscriber fell behind.
	C <-chan Event

	ch  chan Event
	run *Run
	err error
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.run.unsubscribe(s)
}

// Err reports why C was closed early, if it was.
func (s *Subscription) Err() error {
	s.run.mu.Lock()
	defer s.run.mu.Unlock()
	return s.err
}

// Hub tracks the runs a process is serving.
type Hub struct {
	mu        sync.RWMutex
	runs      map[string]*Run
	retention time.Duration
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithRetention sets how long finished runs stay available for replay.
func WithRetention(d time.Duration) HubOption {
	return func(h *Hub) {
		h.retention = d
	}
}

// NewHub creates an empty hub. Finished runs are kept for ten minutes unless
// configured otherwise.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		runs:      make(map[string]*Run),
		retention: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create registers a new run.
func (h *Hub) Create(id string) (*Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.runs[id]; ok {
		return nil, ErrRunExists
	}
	r := NewRun(id)
	h.runs[id] = r
	return r, nil
}

// Get returns a tracked run.
func (h *Hub) Get(id string) (*Run, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.runs[id]
	return r, ok
}

// Remove forgets a run. Its subscribers keep whatever they already received.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.runs, id)
}

// Sweep evicts finished runs older than the retention period and returns
// how many were removed.
func (h *Hub) Sweep(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for id, r := range h.runs {
		r.mu.Lock()
		expired := r.closed && now.Sub(r.finishedAt) >= h.retention
		r.mu.Unlock()
		if expired {
			delete(h.runs, id)
			removed++
		}
	}
	return removed
}

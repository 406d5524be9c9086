// ABOUTME: Consumer stream controller that reads one run's events at a time and renders them to a sink.
// ABOUTME: Owns the session state machine, stale-session guarding, first-content notification and resync.

package consumer

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/2389-research/summarize/events"
	"github.com/2389-research/summarize/stream"
	"github.com/2389-research/summarize/summary"
)

// Phase is the controller's session state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseStreaming  Phase = "streaming"
	PhaseError      Phase = "error"
)

// EventStream is an open transport delivering one run's events.
type EventStream interface {
	// Next returns the next event, io.EOF after a terminal event, or an
	// error when the transport failed.
	Next() (events.Event, error)
	Close() error
}

// Source opens event streams.
type Source func(ctx context.Context, runID string, mode stream.Mode) (EventStream, error)

// FromClient adapts an events.Client into a Source.
func FromClient(c *events.Client) Source {
	return func(ctx context.Context, runID string, mode stream.Mode) (EventStream, error) {
		r, err := c.Open(ctx, runID, mode, 0)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// FromHub reads runs published in the same process. Mode only affects how
// the controller folds chunks.
func FromHub(h *events.Hub) Source {
	return func(_ context.Context, runID string, _ stream.Mode) (EventStream, error) {
		r, err := events.OpenLocal(h, runID, 0)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Sink renders session state. Calls are serialized and never made after the
// session they belong to was aborted or replaced. A Sink must not call back
// into the Controller.
type Sink interface {
	Reset()
	Phase(p Phase)
	// Append receives only newly appended text.
	Append(text string)
	Status(text string)
	// Meta receives the merged meta so far.
	Meta(m events.Meta)
	Metrics(summary string)
	Error(message string)
}

// Run identifies what to observe.
type Run struct {
	ID   string
	Mode stream.Mode
}

// StreamError is an error event reported by the producer, or the transport
// ending early. Message is kept verbatim.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }

// Controller drives one reader surface. It is safe for concurrent use.
type Controller struct {
	source  Source
	sink    Sink
	onFirst func(runID string)
	resync  func()

	mu      sync.Mutex
	gen     uint64
	phase   Phase
	current *session
	lastErr error
}

type session struct {
	gen    uint64
	run    Run
	state  *stream.State
	meta   events.Meta
	cancel context.CancelFunc

	mu        sync.Mutex
	transport EventStream
	released  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithFirstContent registers the one-time notification fired when a
// session's text first contains a non-whitespace character.
func WithFirstContent(fn func(runID string)) Option {
	return func(c *Controller) {
		c.onFirst = fn
	}
}

// WithResync registers the action run after a session ends on its own, by
// completion or error, while it is still the current session.
func WithResync(fn func()) Option {
	return func(c *Controller) {
		c.resync = fn
	}
}

// New creates an idle Controller.
func New(source Source, sink Sink, opts ...Option) *Controller {
	c := &Controller{source: source, sink: sink, phase: PhaseIdle}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start aborts any current session and begins observing run. The returned
// channel is closed when the new session's reader goroutine has exited.
func (c *Controller) Start(ctx context.Context, run Run) <-chan struct{} {
	if run.Mode == "" {
		run.Mode = stream.ModeSummarize
	}

	c.mu.Lock()
	c.stopLocked()
	c.gen++
	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		gen:    c.gen,
		run:    run,
		state:  stream.NewState(run.Mode),
		cancel: cancel,
	}
	c.current = s
	c.lastErr = nil
	c.sink.Reset()
	c.setPhaseLocked(PhaseConnecting)
	c.mu.Unlock()

	log.Printf("component=consumer action=start run=%s mode=%s gen=%d", run.ID, run.Mode, s.gen)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.read(sctx, s)
	}()
	return done
}

// Abort closes the current transport and returns to idle without reporting
// an error. It is a no-op when no session is connecting or streaming.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseConnecting && c.phase != PhaseStreaming {
		return
	}
	log.Printf("component=consumer action=abort run=%s", c.current.run.ID)
	c.stopLocked()
	c.gen++
	c.setPhaseLocked(PhaseIdle)
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Text returns the current session's accumulated text.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.state.Text
}

// Meta returns the current session's merged meta.
func (c *Controller) Meta() events.Meta {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return events.Meta{}
	}
	return c.current.meta
}

// Err returns the error that ended the last session, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) stopLocked() {
	if c.current == nil {
		return
	}
	c.current.cancel()
	c.current.release()
}

func (c *Controller) setPhaseLocked(p Phase) {
	if c.phase == p {
		return
	}
	c.phase = p
	c.sink.Phase(p)
}

// read owns the session's transport until a terminal event, a transport
// failure or cancellation.
func (c *Controller) read(ctx context.Context, s *session) {
	es, err := c.source(ctx, s.run.ID, s.run.Mode)
	if err != nil {
		c.finish(s, err)
		return
	}
	if !s.attach(es) {
		// Aborted while connecting.
		return
	}

	for {
		evt, err := es.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = events.ErrUnexpectedEnd
			}
			c.finish(s, err)
			return
		}
		if stop := c.apply(s, evt); stop {
			return
		}
	}
}

// apply folds one event into the session. It reports whether reading must stop.
func (c *Controller) apply(s *session, evt events.Event) bool {
	var first bool

	c.mu.Lock()
	if s.gen != c.gen {
		c.mu.Unlock()
		return true
	}
	switch evt.Kind {
	case events.KindChunk:
		c.setPhaseLocked(PhaseStreaming)
		u := s.state.Apply(evt.Text)
		if u.Appended != "" {
			c.sink.Append(u.Appended)
		}
		first = u.FirstContent
	case events.KindMeta:
		s.meta = s.meta.Merge(evt.Meta)
		c.sink.Meta(s.meta)
	case events.KindStatus:
		c.sink.Status(evt.Text)
	case events.KindMetrics:
		c.sink.Metrics(evt.Summary)
	case events.KindError, events.KindDone:
		c.mu.Unlock()
		c.finish(s, terminalError(s, evt))
		return true
	}
	c.mu.Unlock()

	if first && c.onFirst != nil {
		c.onFirst(s.run.ID)
	}
	return false
}

// terminalError maps a terminal event to the session's outcome.
func terminalError(s *session, evt events.Event) error {
	if evt.Kind == events.KindError {
		return &StreamError{Message: evt.Message}
	}
	if s.run.Mode == stream.ModeSummarize && !s.state.SeenNonWhitespace {
		return summary.ErrEmptyOutput
	}
	return nil
}

// finish releases the transport, moves to idle or error and runs the resync
// action once if s is still the current session.
func (c *Controller) finish(s *session, err error) {
	s.release()

	c.mu.Lock()
	if s.gen != c.gen {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.lastErr = err
		c.sink.Error(err.Error())
		c.setPhaseLocked(PhaseError)
		log.Printf("component=consumer action=session_failed run=%s err=%q", s.run.ID, err.Error())
	} else {
		c.setPhaseLocked(PhaseIdle)
		log.Printf("component=consumer action=session_done run=%s chars=%d", s.run.ID, len(s.state.Text))
	}
	s.cancel()
	c.mu.Unlock()

	if c.resync != nil {
		c.resync()
	}
}

// attach records the opened transport. It returns false, closing es, when
// the session was already released.
func (s *session) attach(es EventStream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		_ = es.Close()
		return false
	}
	s.transport = es
	return true
}

// release closes the transport once.
func (s *session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	if s.transport != nil {
		_ = s.transport.Close()
	}
}

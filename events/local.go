// ABOUTME: In-process reader over a hub run, the local counterpart of the SSE Reader.
// ABOUTME: Replays history then follows the live subscription until a terminal event.

package events

import (
	"errors"
	"fmt"
	"io"
)

// ErrRunNotFound is returned when a run id is not in the hub.
var ErrRunNotFound = errors.New("run not found")

// LocalReader reads a run's events without a network transport.
type LocalReader struct {
	pending  []Event
	sub      *Subscription
	finished bool
}

// OpenLocal subscribes to runID in hub, replaying events after seq after.
func OpenLocal(hub *Hub, runID string, after uint64) (*LocalReader, error) {
	run, ok := hub.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	history, sub := run.Subscribe(after)
	return &LocalReader{pending: history, sub: sub}, nil
}

// Next returns the next event. After a terminal event it returns io.EOF.
func (r *LocalReader) Next() (Event, error) {
	if r.finished {
		return Event{}, io.EOF
	}
	var evt Event
	if len(r.pending) > 0 {
		evt = r.pending[0]
		r.pending = r.pending[1:]
	} else {
		e, ok := <-r.sub.C
		if !ok {
			if err := r.sub.Err(); err != nil {
				return Event{}, fmt.Errorf("%w: %v", ErrUnexpectedEnd, err)
			}
			return Event{}, ErrUnexpectedEnd
		}
		evt = e
	}
	if evt.Kind.Terminal() {
		r.finished = true
	}
	return evt, nil
}

// Close stops the subscription.
func (r *LocalReader) Close() error {
	r.sub.Close()
	return nil
}

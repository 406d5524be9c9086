// ABOUTME: Event kinds and JSON payloads for the run event stream (chunk, meta, status, metrics, error, done).
// ABOUTME: Converts events to and from SSE frames; done and error are terminal.

package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/2389-research/summarize/llm/sse"
)

// Kind discriminates events on the wire.
type Kind string

const (
	KindChunk   Kind = "chunk"
	KindMeta    Kind = "meta"
	KindStatus  Kind = "status"
	KindMetrics Kind = "metrics"
	KindError   Kind = "error"
	KindDone    Kind = "done"
)

// Terminal reports whether no event may follow this kind.
func (k Kind) Terminal() bool {
	return k == KindError || k == KindDone
}

// ErrUnknownKind is returned by Decode for event names this package does not
// know. Readers skip such events.
var ErrUnknownKind = errors.New("unknown event kind")

// Meta carries optional facts about a run. Later meta events are merged into
// earlier ones field by field.
type Meta struct {
	Model            string `json:"model,omitempty"`
	ModelLabel       string `json:"modelLabel,omitempty"`
	InputSummary     string `json:"inputSummary,omitempty"`
	SummaryFromCache *bool  `json:"summaryFromCache,omitempty"`
}

// Merge returns m updated with every field next sets. Fields next leaves
// empty keep their previous value.
func (m Meta) Merge(next Meta) Meta {
	if next.Model != "" {
		m.Model = next.Model
	}
	if next.ModelLabel != "" {
		m.ModelLabel = next.ModelLabel
	}
	if next.InputSummary != "" {
		m.InputSummary = next.InputSummary
	}
	if next.SummaryFromCache != nil {
		v := *next.SummaryFromCache
		m.SummaryFromCache = &v
	}
	return m
}

// Event is one entry in a run's ordered stream. Only the field matching Kind
// is meaningful.
type Event struct {
	// Seq is assigned by the Run on publish, starting at 1.
	Seq     uint64
	Kind    Kind
	Text    string // chunk, status
	Meta    Meta   // meta
	Summary string // metrics
	Message string // error
}

// Chunk is a piece of summary text.
func Chunk(text string) Event { return Event{Kind: KindChunk, Text: text} }

// Status is a short phase line such as "Summarizing…".
func Status(text string) Event { return Event{Kind: KindStatus, Text: text} }

// MetaUpdate carries meta fields to merge.
func MetaUpdate(m Meta) Event { return Event{Kind: KindMeta, Meta: m} }

// Metrics is the human-readable usage line.
func Metrics(summary string) Event { return Event{Kind: KindMetrics, Summary: summary} }

// Failure is the terminal error event.
func Failure(message string) Event { return Event{Kind: KindError, Message: message} }

// Done is the terminal success event.
func Done() Event { return Event{Kind: KindDone} }

type textPayload struct {
	Text string `json:"text"`
}

type metricsPayload struct {
	Summary string `json:"summary"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Payload returns the JSON data for the event's kind.
func (e Event) Payload() ([]byte, error) {
	switch e.Kind {
	case KindChunk, KindStatus:
		return json.Marshal(textPayload{Text: e.Text})
	case KindMeta:
		return json.Marshal(e.Meta)
	case KindMetrics:
		return json.Marshal(metricsPayload{Summary: e.Summary})
	case KindError:
		return json.Marshal(errorPayload{Message: e.Message})
	case KindDone:
		return []byte("{}"), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

// SSE renders the event as an SSE frame. The sequence number becomes the
// frame id so a reader can resume with Last-Event-ID.
func (e Event) SSE() (sse.Event, error) {
	data, err := e.Payload()
	if err != nil {
		return sse.Event{}, err
	}
	frame := sse.Event{Type: string(e.Kind), Data: string(data)}
	if e.Seq > 0 {
		frame.ID = strconv.FormatUint(e.Seq, 10)
	}
	return frame, nil
}

// Decode parses an SSE frame back into an Event.
func Decode(frame sse.Event) (Event, error) {
	evt := Event{Kind: Kind(frame.Type)}
	if frame.ID != "" {
		if seq, err := strconv.ParseUint(frame.ID, 10, 64); err == nil {
			evt.Seq = seq
		}
	}
	data := []byte(frame.Data)

	var err error
	switch evt.Kind {
	case KindChunk, KindStatus:
		var p textPayload
		err = json.Unmarshal(data, &p)
		evt.Text = p.Text
	case KindMeta:
		err = json.Unmarshal(data, &evt.Meta)
	case KindMetrics:
		var p metricsPayload
		err = json.Unmarshal(data, &p)
		evt.Summary = p.Summary
	case KindError:
		var p errorPayload
		err = json.Unmarshal(data, &p)
		evt.Message = p.Message
	case KindDone:
		// Payload is ignored.
	default:
		return evt, fmt.Errorf("%w: %q", ErrUnknownKind, frame.Type)
	}
	if err != nil {
		return evt, fmt.Errorf("decode %s event: %w", evt.Kind, err)
	}
	return evt, nil
}

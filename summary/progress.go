// ABOUTME: Progress notifications emitted by a summary run over a single channel.
// ABOUTME: A closed tagged union: consumers switch on the concrete type.

package summary

import (
	"context"

	"github.com/2389-research/summarize/llm"
)

// Progress is one notification from a run. The set of implementations is
// closed to this package.
type Progress interface {
	isProgress()
}

// ModelChosen is sent before an attempt starts any network or process work.
type ModelChosen struct {
	Attempt Attempt
}

// TextDelta carries newly appended summary text. Text already delivered is
// never repeated.
type TextDelta struct {
	Text string
}

// UsageReport carries provider-reported usage once an attempt succeeds.
type UsageReport struct {
	Model string
	Usage llm.Usage
}

// StatusUpdate is a short phase string such as "Summarizing…".
type StatusUpdate struct {
	Text string
}

func (ModelChosen) isProgress()  {}
func (TextDelta) isProgress()    {}
func (UsageReport) isProgress()  {}
func (StatusUpdate) isProgress() {}

// emit delivers p on ch unless ch is nil or ctx ends first.
func emit(ctx context.Context, ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	case <-ctx.Done():
	}
}

// ABOUTME: Publisher that turns summary progress notifications and the final outcome into run events.
// ABOUTME: Emits status and meta on model choice, chunks for deltas, then metrics and a terminal event.

package events

import (
	"context"
	"log"

	"github.com/2389-research/summarize/summary"
)

// Publisher writes one run's events. It is used from a single goroutine.
type Publisher struct {
	run *Run
}

// NewPublisher creates a Publisher for run.
func NewPublisher(run *Run) *Publisher {
	return &Publisher{run: run}
}

// Start announces the run before any attempt is made.
func (p *Publisher) Start(inputSummary string) {
	p.publish(Status("Connecting…"))
	if inputSummary != "" {
		p.publish(MetaUpdate(Meta{InputSummary: inputSummary}))
	}
}

// Forward drains progress until it is closed or ctx ends.
func (p *Publisher) Forward(ctx context.Context, progress <-chan summary.Progress) {
	for {
		select {
		case pr, ok := <-progress:
			if !ok {
				return
			}
			p.Handle(pr)
		case <-ctx.Done():
			return
		}
	}
}

// Handle translates a single progress notification.
func (p *Publisher) Handle(pr summary.Progress) {
	switch v := pr.(type) {
	case summary.ModelChosen:
		p.publish(MetaUpdate(Meta{Model: v.Attempt.Model, ModelLabel: v.Attempt.Label()}))
		p.publish(Status("Summarizing with " + v.Attempt.Label() + "…"))
	case summary.TextDelta:
		p.publish(Chunk(v.Text))
	case summary.UsageReport:
		p.publish(MetaUpdate(Meta{Model: v.Model}))
	case summary.StatusUpdate:
		p.publish(Status(v.Text))
	}
}

// Finish publishes the terminal events for a completed Summarize call.
// A result that was not streamed is delivered as a single chunk first.
func (p *Publisher) Finish(out summary.Outcome, err error) {
	if err != nil || out.Result == nil {
		if err == nil {
			err = out.Err()
		}
		p.publish(Failure(err.Error()))
		return
	}
	res := out.Result
	if !res.Streamed {
		p.publish(Chunk(res.Text))
	}
	p.publish(Metrics(summary.MetricsLine(res.Model, res.Usage, res.Elapsed)))
	p.publish(Done())
}

// Summarize runs req through s, forwarding progress as it arrives, and
// publishes the terminal events. The run is always finished on return.
func (p *Publisher) Summarize(ctx context.Context, s *summary.Summarizer, req summary.Request) (summary.Outcome, error) {
	progress := make(chan summary.Progress, 64)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		p.Forward(ctx, progress)
	}()

	out, err := s.Summarize(ctx, req, progress)
	close(progress)
	<-forwarded
	p.Finish(out, err)
	return out, err
}

// Cached replays a stored summary as a finished run.
func (p *Publisher) Cached(text, model, metrics string) {
	fromCache := true
	p.publish(MetaUpdate(Meta{Model: model, SummaryFromCache: &fromCache}))
	p.publish(Chunk(text))
	if metrics != "" {
		p.publish(Metrics(metrics))
	}
	p.publish(Done())
}

func (p *Publisher) publish(evt Event) {
	if _, err := p.run.Publish(evt); err != nil {
		log.Printf("component=events.publisher action=publish_failed run=%s kind=%s err=%v", p.run.ID(), evt.Kind, err)
	}
}

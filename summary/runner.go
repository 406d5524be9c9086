// ABOUTME: Generation runner that executes one attempt, streamed or blocking, and normalizes the result.
// ABOUTME: Falls back once to a blocking call when streaming is unsupported or the first byte times out.

package summary

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/2389-research/summarize/llm"
	"github.com/2389-research/summarize/stream"
)

// AdapterFactory builds the provider adapter for an attempt.
type AdapterFactory func(ctx context.Context, a Attempt, snap Snapshot) (llm.ProviderAdapter, error)

// RunOptions controls a single Run call.
type RunOptions struct {
	StreamingAllowed bool
	MaxOutputTokens  int
	// Progress, when non-nil, receives ModelChosen, TextDelta, UsageReport
	// and StatusUpdate notifications in order.
	Progress chan<- Progress
}

// Runner executes attempts against real providers.
type Runner struct {
	snapshot Snapshot
	registry *Registry
	timeouts llm.AdapterTimeout
	adapters AdapterFactory
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeouts overrides the connect, request and first-byte timeouts.
func WithTimeouts(t llm.AdapterTimeout) RunnerOption {
	return func(r *Runner) {
		r.timeouts = t
	}
}

// WithAdapterFactory replaces the transport-based adapter construction.
func WithAdapterFactory(f AdapterFactory) RunnerOption {
	return func(r *Runner) {
		r.adapters = f
	}
}

// WithRegistry lets the runner clamp output budgets to catalog ceilings.
func WithRegistry(reg *Registry) RunnerOption {
	return func(r *Runner) {
		r.registry = reg
	}
}

// NewRunner creates a Runner over an immutable snapshot.
func NewRunner(snap Snapshot, opts ...RunnerOption) *Runner {
	r := &Runner{
		snapshot: snap,
		timeouts: llm.DefaultAdapterTimeout(),
		adapters: NewAdapter,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Executor binds the runner to a prompt for use with RunWithFallback.
func (r *Runner) Executor(prompt []llm.Message, opts RunOptions) Executor {
	return func(ctx context.Context, a Attempt) (*Result, error) {
		return r.Run(ctx, a, prompt, opts)
	}
}

// Run executes one attempt. ModelChosen is delivered before any work starts.
// Failures are returned as *AttemptError.
func (r *Runner) Run(ctx context.Context, a Attempt, prompt []llm.Message, opts RunOptions) (*Result, error) {
	emit(ctx, opts.Progress, ModelChosen{Attempt: a})
	start := time.Now()

	adapter, err := r.adapters(ctx, a, r.snapshot)
	if err != nil {
		var cfgErr *llm.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, &AttemptError{Kind: KindMissingCredential, Attempt: a, Err: err}
		}
		return nil, &AttemptError{Kind: KindProviderError, Attempt: a, Err: err}
	}
	defer adapter.Close()

	maxTokens := opts.MaxOutputTokens
	if r.registry != nil {
		maxTokens = r.registry.MaxOutput(a, maxTokens)
	}
	req := llm.Request{Model: a.Model, Messages: prompt}
	if maxTokens > 0 {
		req.MaxTokens = llm.IntPtr(maxTokens)
	}

	var res *Result
	if !opts.StreamingAllowed || a.ForceNonStreaming {
		res, err = r.complete(ctx, adapter, req, opts)
	} else {
		res, err = r.stream(ctx, a, adapter, req, opts)
	}
	if err != nil {
		if llm.IsAbort(err) || ctx.Err() != nil {
			return nil, &llm.AbortError{SDKError: llm.SDKError{Message: a.Label() + " cancelled", Cause: err}}
		}
		ae := &AttemptError{Kind: KindProviderError, Attempt: a, Err: err}
		if res != nil && res.Streamed {
			if res.Model == "" {
				res.Model = a.Model
			}
			res.Elapsed = time.Since(start)
			ae.Partial = res
			log.Printf("component=summary.runner action=failed_after_output attempt=%s chars=%d", a.Label(), len(res.Text))
		}
		return nil, ae
	}

	if strings.TrimSpace(res.Text) == "" {
		return nil, &AttemptError{Kind: KindProviderError, Attempt: a, Err: ErrEmptyOutput}
	}
	if res.Model == "" {
		res.Model = a.Model
	}
	res.Elapsed = time.Since(start)
	emit(ctx, opts.Progress, UsageReport{Model: res.Model, Usage: res.Usage})
	return res, nil
}

// complete performs one blocking call bounded by the request timeout.
func (r *Runner) complete(ctx context.Context, adapter llm.ProviderAdapter, req llm.Request, opts RunOptions) (*Result, error) {
	if r.timeouts.Request > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeouts.Request)
		defer cancel()
	}
	resp, err := adapter.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &llm.RequestTimeoutError{SDKError: llm.SDKError{Message: "request timed out", Cause: err}}
		}
		return nil, err
	}
	return &Result{Text: resp.Text, Usage: resp.Usage, Model: resp.Model}, nil
}

// errFirstByteTimeout marks a stream that produced nothing before the
// first-byte deadline.
var errFirstByteTimeout = errors.New("timed out waiting for first streamed byte")

// stream opens a streamed call and folds deltas through the merger. If the
// provider rejects streaming for this request, or no event arrives before
// the first-byte deadline, it falls back to a single blocking call. Once
// text has been delivered there is no fallback: it would repeat that text.
func (r *Runner) stream(ctx context.Context, a Attempt, adapter llm.ProviderAdapter, req llm.Request, opts RunOptions) (*Result, error) {
	res, err := r.streamOnce(ctx, adapter, req, opts)
	if err == nil {
		return res, nil
	}
	delivered := res != nil && res.Streamed
	if ctx.Err() == nil && !delivered && (errors.Is(err, errFirstByteTimeout) || llm.IsStreamingUnsupported(err)) {
		log.Printf("component=summary.runner action=stream_fallback attempt=%s reason=%q", a.Label(), err.Error())
		emit(ctx, opts.Progress, StatusUpdate{Text: "Streaming unavailable, waiting for full response…"})
		return r.complete(ctx, adapter, req, opts)
	}
	return res, err
}

// streamOnce runs a single streamed call. On error the partial result is
// returned so the caller can tell whether any text was delivered.
func (r *Runner) streamOnce(ctx context.Context, adapter llm.ProviderAdapter, req llm.Request, opts RunOptions) (*Result, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The first-byte timer cancels the stream unless an event arrives first.
	// Stop reporting false means the timer has fired (or is firing).
	var firstByte *time.Timer
	if r.timeouts.FirstByte > 0 {
		firstByte = time.AfterFunc(r.timeouts.FirstByte, cancel)
		defer firstByte.Stop()
	}
	started := false
	markStarted := func() bool {
		if !started {
			started = firstByte == nil || firstByte.Stop()
			return started
		}
		return true
	}
	timedOut := func() bool {
		return !started && firstByte != nil && ctx.Err() == nil
	}

	ch, err := adapter.Stream(streamCtx, req)
	if err != nil {
		if timedOut() && streamCtx.Err() != nil {
			return nil, errFirstByteTimeout
		}
		return nil, err
	}

	state := stream.NewState(stream.ModeSummarize)
	res := &Result{}

	for {
		var evt llm.StreamEvent
		var ok bool
		select {
		case evt, ok = <-ch:
		case <-streamCtx.Done():
			if timedOut() {
				return res, errFirstByteTimeout
			}
			return res, streamCtx.Err()
		}
		if !ok {
			break
		}
		if !markStarted() {
			return res, errFirstByteTimeout
		}

		switch evt.Type {
		case llm.StreamTextDelta:
			if u := state.Apply(evt.Delta); u.Appended != "" {
				res.Streamed = true
				emit(ctx, opts.Progress, TextDelta{Text: u.Appended})
			}
		case llm.StreamStart, llm.StreamFinish:
			if evt.Usage != nil {
				res.Usage = *evt.Usage
			}
			if evt.Response != nil {
				res.Model = evt.Response.Model
				// Some providers only deliver the full text on finish.
				if state.Text == "" && evt.Response.Text != "" {
					u := state.Apply(evt.Response.Text)
					res.Streamed = true
					emit(ctx, opts.Progress, TextDelta{Text: u.Appended})
				}
			}
		case llm.StreamErrorEvt:
			if evt.Error == nil {
				evt.Error = &llm.StreamError{SDKError: llm.SDKError{Message: "stream error"}}
			}
			res.Text = state.Text
			return res, evt.Error
		}
	}

	if !started && streamCtx.Err() != nil && timedOut() {
		return res, errFirstByteTimeout
	}
	res.Text = state.Text
	return res, nil
}

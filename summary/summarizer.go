// ABOUTME: Summarizer ties the registry, orchestrator and runner into one summarize call.
// ABOUTME: Chooses fixed or auto mode, runs the chain and composes the final error with gateway remediation.

package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/summarize/llm"
)

// AutoModel selects the ranked fallback chain instead of a pinned model.
const AutoModel = "auto"

// Request is one summarize call.
type Request struct {
	Task TaskKind
	// Model is AutoModel (or empty) for the fallback chain, otherwise a
	// catalog id, alias or provider/model to pin.
	Model           string
	Prompt          []llm.Message
	Streaming       bool
	MaxOutputTokens int
}

// Summarizer runs summarize requests against one snapshot.
type Summarizer struct {
	registry   *Registry
	snapshot   Snapshot
	runnerOpts []RunnerOption
	lister     ListerFactory
}

// SummarizerOption configures a Summarizer.
type SummarizerOption func(*Summarizer)

// WithRunnerOptions passes options through to every Runner the summarizer creates.
func WithRunnerOptions(opts ...RunnerOption) SummarizerOption {
	return func(s *Summarizer) {
		s.runnerOpts = append(s.runnerOpts, opts...)
	}
}

// WithListerFactory overrides how the gateway remediation probe connects.
func WithListerFactory(f ListerFactory) SummarizerOption {
	return func(s *Summarizer) {
		s.lister = f
	}
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(reg *Registry, snap Snapshot, opts ...SummarizerOption) *Summarizer {
	s := &Summarizer{registry: reg, snapshot: snap}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the registry the summarizer plans with.
func (s *Summarizer) Registry() *Registry {
	return s.registry
}

// Snapshot returns the credential snapshot the summarizer runs with.
func (s *Summarizer) Snapshot() Snapshot {
	return s.snapshot
}

// Plan resolves a request into the attempts to run.
func (s *Summarizer) Plan(req Request) (Plan, error) {
	task := req.Task
	if task == "" {
		task = TaskText
	}
	if req.Model != "" && !strings.EqualFold(req.Model, AutoModel) {
		a, err := s.registry.Fixed(req.Model, task)
		if err != nil {
			return Plan{}, err
		}
		return Plan{Attempts: []Attempt{a}, Fixed: true, Snapshot: s.snapshot}, nil
	}
	return Plan{Attempts: s.registry.Chain(task, s.snapshot), Snapshot: s.snapshot}, nil
}

// Summarize runs the request. Progress, when non-nil, receives notifications
// in order and is not closed. On failure the Outcome carries the full
// diagnostics and the error is the composed user-visible message.
func (s *Summarizer) Summarize(ctx context.Context, req Request, progress chan<- Progress) (Outcome, error) {
	if len(req.Prompt) == 0 {
		return Outcome{}, fmt.Errorf("empty prompt")
	}
	plan, err := s.Plan(req)
	if err != nil {
		return Outcome{}, err
	}

	opts := append([]RunnerOption{WithRegistry(s.registry)}, s.runnerOpts...)
	runner := NewRunner(s.snapshot, opts...)
	exec := runner.Executor(req.Prompt, RunOptions{
		StreamingAllowed: req.Streaming,
		MaxOutputTokens:  req.MaxOutputTokens,
		Progress:         progress,
	})

	out := RunWithFallback(ctx, plan, exec)
	if out.Result != nil {
		return out, nil
	}
	out.Diagnostics.Remediate(ctx, plan.Attempts, s.snapshot, s.lister, DefaultRemediationTimeout)
	return out, out.Err()
}

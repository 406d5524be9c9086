// ABOUTME: End-to-end tests for Summarizer over stub adapters.
// ABOUTME: Exercises plan selection and the auto chain with progress delivery.

package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/2389-research/summarize/llm"
)

func TestSummarizerPlan(t *testing.T) {
	s := NewSummarizer(NewRegistry(nil), Snapshot{})

	auto, err := s.Plan(Request{Model: "AUTO"})
	if err != nil || auto.Fixed || len(auto.Attempts) < 2 {
		t.Errorf("auto plan = %+v, %v", auto, err)
	}
	fixed, err := s.Plan(Request{Model: "sonnet"})
	if err != nil || !fixed.Fixed || len(fixed.Attempts) != 1 {
		t.Errorf("fixed plan = %+v, %v", fixed, err)
	}
	if _, err := s.Plan(Request{Model: "sonnet", Task: TaskVideo}); err == nil {
		t.Error("expected capability error")
	}
}

func TestSummarizerFallsThroughToWorkingProvider(t *testing.T) {
	failing := &stubAdapter{completeErr: errors.New("503 overloaded")}
	working := &stubAdapter{completeResp: &llm.Response{Text: "final summary", Model: "claude-haiku-4-5"}}
	factory := func(_ context.Context, a Attempt, _ Snapshot) (llm.ProviderAdapter, error) {
		if a.Provider == "openai" {
			return failing, nil
		}
		return working, nil
	}
	snap := Snapshot{Credentials: map[string]string{"OPENAI_API_KEY": "k", "ANTHROPIC_API_KEY": "k"}}
	s := NewSummarizer(NewRegistry(nil), snap, WithRunnerOptions(WithAdapterFactory(factory)))
	progress := make(chan Progress, 32)

	out, err := s.Summarize(context.Background(), Request{Prompt: testPrompt()}, progress)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out.Used == nil || out.Used.Provider != "anthropic" {
		t.Errorf("Used = %+v", out.Used)
	}
	if out.Result.Text != "final summary" {
		t.Errorf("Text = %q", out.Result.Text)
	}

	var chosen []string
	for _, p := range drain(progress) {
		if mc, ok := p.(ModelChosen); ok {
			chosen = append(chosen, mc.Attempt.Model)
		}
	}
	if len(chosen) != 2 || chosen[0] != "gpt-5.2-mini" || chosen[1] != "claude-haiku-4-5" {
		t.Errorf("models chosen = %v", chosen)
	}
}

func TestSummarizerRejectsEmptyPrompt(t *testing.T) {
	s := NewSummarizer(NewRegistry(nil), Snapshot{})
	if _, err := s.Summarize(context.Background(), Request{}, nil); err == nil {
		t.Error("expected an error for an empty prompt")
	}
}

// ABOUTME: Attempt value type describing one provider/model/transport candidate for a summary.
// ABOUTME: Also defines the attempt failure taxonomy and the generation result returned on success.

package summary

import (
	"errors"
	"fmt"
	"time"

	"github.com/2389-research/summarize/llm"
)

// Attempt is one candidate way to produce a summary. Attempts are created
// once per run by the Registry and never mutated afterwards.
type Attempt struct {
	Transport llm.Transport
	Provider  string
	Model     string

	// RequiredEnv names the credential the attempt needs. Empty for local tools.
	RequiredEnv string
	// Tool is the executable a local-tool attempt runs.
	Tool string

	// RoutingHints restricts a gateway attempt to these upstream providers.
	RoutingHints []string
	// ForceNonStreaming makes the Runner use a single blocking call.
	ForceNonStreaming bool
	// BaseURL overrides the endpoint for OpenAI-compatible attempts.
	BaseURL string
}

// Label is the human-readable "provider/model" name of the attempt.
func (a Attempt) Label() string {
	return a.Provider + "/" + a.Model
}

// Requirement names what must be present for the attempt to be runnable:
// the credential variable, or the tool for local-tool attempts.
func (a Attempt) Requirement() string {
	if a.Transport == llm.TransportLocalTool {
		return a.Tool + " (local tool)"
	}
	return a.RequiredEnv
}

// FailureKind classifies why an attempt did not produce a result.
type FailureKind string

const (
	KindMissingCredential FailureKind = "missing-credential"
	KindProviderError     FailureKind = "provider-error"
	KindFixedModelFatal   FailureKind = "fixed-model-fatal"
)

// ErrEmptyOutput is reported when a provider call succeeds but returns only
// whitespace. It is always a provider-error for that attempt.
var ErrEmptyOutput = errors.New("model returned no output")

// AttemptError is the classified failure of a single attempt.
type AttemptError struct {
	Kind    FailureKind
	Attempt Attempt
	Err     error
	// Partial is the text the attempt streamed before it failed. Readers
	// have already shown it, so no other attempt may run after this one.
	Partial *Result
}

func (e *AttemptError) Error() string {
	switch e.Kind {
	case KindFixedModelFatal:
		// A pinned model's failure is surfaced verbatim.
		return e.Err.Error()
	case KindMissingCredential:
		return fmt.Sprintf("%s: missing %s", e.Attempt.Label(), e.Attempt.Requirement())
	default:
		return fmt.Sprintf("%s: %v", e.Attempt.Label(), e.Err)
	}
}

func (e *AttemptError) Unwrap() error { return e.Err }

// FailureKindOf returns the kind of the first AttemptError in err's chain.
func FailureKindOf(err error) (FailureKind, bool) {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// partialOf returns the text delivered by a failed attempt, if any.
func partialOf(err error) *Result {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Partial
	}
	return nil
}

// Result is a successful generation.
type Result struct {
	Text  string
	Usage llm.Usage
	// Model is the model id echoed by the provider, or the attempt's model
	// when the provider did not report one.
	Model string
	// Streamed is true when Text was already delivered incrementally through
	// TextDelta progress and must not be written again.
	Streamed bool
	Elapsed  time.Duration
}

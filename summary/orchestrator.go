// ABOUTME: Attempt orchestrator that runs a fixed attempt or walks a ranked fallback chain.
// ABOUTME: Skips attempts missing credentials, records the last failure and flags gateway routing rejections.

package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/2389-research/summarize/llm"
)

// ErrMissingCredentials is wrapped by the composed error when no attempt
// could run because every candidate lacked its credential or tool.
var ErrMissingCredentials = errors.New("missing credentials")

// ErrNoCandidates is returned when the chain was empty to begin with.
var ErrNoCandidates = errors.New("no model can summarize this input with the current configuration")

// Executor runs one attempt. It is normally Runner.Run bound to a prompt.
type Executor func(ctx context.Context, a Attempt) (*Result, error)

// Plan is the input to RunWithFallback.
type Plan struct {
	Attempts []Attempt
	// Fixed marks a single user-pinned attempt: its failure is final.
	Fixed    bool
	Snapshot Snapshot
}

// Diagnostics is what survives a run that produced no result.
type Diagnostics struct {
	LastError           error
	LastAttempt         *Attempt
	MissingRequiredEnvs []string
	NoAllowedProviders  bool
	Aborted             bool
	Fixed               bool
	// Partial is the text the last attempt streamed before failing. The
	// chain stops there: a later attempt's text would land after it.
	Partial *Result
	// Remediation is an optional hint appended to the composed error, filled
	// in by the caller after probing the gateway.
	Remediation string
}

// Outcome is the result of RunWithFallback. Result and Used are nil when
// every attempt was skipped or failed.
type Outcome struct {
	Result      *Result
	Used        *Attempt
	Diagnostics Diagnostics
}

// RunWithFallback executes the plan's attempts strictly one at a time. In
// fixed mode the single attempt runs once and any failure is final. In auto
// mode attempts without their credential are skipped and recorded, failures
// are recorded and the next attempt is tried, and the first success ends the
// run. A failure after text was streamed also ends the run. Cancelling ctx stops the chain before the next attempt.
func RunWithFallback(ctx context.Context, plan Plan, execute Executor) Outcome {
	var out Outcome
	out.Diagnostics.Fixed = plan.Fixed

	attempts := plan.Attempts
	if plan.Fixed && len(attempts) > 1 {
		attempts = attempts[:1]
	}

	for i := range attempts {
		a := attempts[i]

		if err := ctx.Err(); err != nil {
			out.Diagnostics.Aborted = true
			out.Diagnostics.LastError = &llm.AbortError{SDKError: llm.SDKError{Message: "summary cancelled", Cause: err}}
			return out
		}

		if !plan.Snapshot.Available(a) {
			out.Diagnostics.addMissing(a.Requirement())
			log.Printf("component=summary.orchestrator action=skip attempt=%s missing=%q", a.Label(), a.Requirement())
			if plan.Fixed {
				out.Diagnostics.LastError = &AttemptError{Kind: KindMissingCredential, Attempt: a}
				out.Diagnostics.LastAttempt = &a
			}
			continue
		}

		log.Printf("component=summary.orchestrator action=attempt index=%d attempt=%s transport=%s", i, a.Label(), a.Transport)
		res, err := execute(ctx, a)
		if err == nil {
			out.Result = res
			out.Used = &a
			log.Printf("component=summary.orchestrator action=success attempt=%s", a.Label())
			return out
		}

		out.Diagnostics.LastAttempt = &a
		if llm.IsAbort(err) || ctx.Err() != nil {
			out.Diagnostics.Aborted = true
			out.Diagnostics.LastError = err
			log.Printf("component=summary.orchestrator action=aborted attempt=%s", a.Label())
			return out
		}

		out.Diagnostics.Partial = partialOf(err)
		if plan.Fixed {
			out.Diagnostics.LastError = &AttemptError{Kind: KindFixedModelFatal, Attempt: a, Err: err, Partial: out.Diagnostics.Partial}
			log.Printf("component=summary.orchestrator action=fixed_failure attempt=%s err=%v", a.Label(), err)
			return out
		}

		if _, classified := FailureKindOf(err); !classified {
			err = &AttemptError{Kind: KindProviderError, Attempt: a, Err: err}
		}
		out.Diagnostics.LastError = err
		if llm.IsNoAllowedProviders(err) {
			out.Diagnostics.NoAllowedProviders = true
		}
		if out.Diagnostics.Partial != nil {
			log.Printf("component=summary.orchestrator action=stop_after_output attempt=%s err=%v", a.Label(), err)
			return out
		}
		log.Printf("component=summary.orchestrator action=fallback attempt=%s err=%v", a.Label(), err)
	}

	return out
}

func (d *Diagnostics) addMissing(req string) {
	if req == "" || slices.Contains(d.MissingRequiredEnvs, req) {
		return
	}
	d.MissingRequiredEnvs = append(d.MissingRequiredEnvs, req)
}

// Err composes the user-visible error for a run that produced no result. It
// prefers the most specific cause known: the pinned model's own error, a
// gateway routing rejection with its remediation, the last concrete failure,
// then the list of missing credentials.
func (d Diagnostics) Err() error {
	switch {
	case d.Aborted:
		return d.LastError
	case d.Fixed && d.LastError != nil:
		return d.LastError
	case d.NoAllowedProviders && d.LastError != nil:
		msg := "gateway has no allowed providers for this routing policy"
		if d.Remediation != "" {
			msg += "; " + d.Remediation
		}
		return fmt.Errorf("%s: %w", msg, d.LastError)
	case d.LastError != nil:
		if len(d.MissingRequiredEnvs) > 0 {
			return fmt.Errorf("%w (skipped for missing credentials: %s)", d.LastError, strings.Join(d.MissingRequiredEnvs, ", "))
		}
		return d.LastError
	case len(d.MissingRequiredEnvs) > 0:
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(d.MissingRequiredEnvs, ", "))
	default:
		return ErrNoCandidates
	}
}

// Err returns nil on success and the composed diagnostic error otherwise.
func (o Outcome) Err() error {
	if o.Result != nil {
		return nil
	}
	return o.Diagnostics.Err()
}

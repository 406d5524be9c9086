// ABOUTME: Tests for gateway remediation after a "no allowed providers" rejection.
// ABOUTME: Uses a stub endpoint lister so no network is touched.

package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/summarize/llm"
)

type stubLister struct {
	endpoints map[string][]llm.GatewayEndpoint
	err       error
	calls     int
}

func (s *stubLister) ListEndpoints(ctx context.Context, model string) ([]llm.GatewayEndpoint, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.endpoints[model], nil
}

func gatewayAttempt() Attempt {
	return Attempt{
		Transport:    llm.TransportGateway,
		Provider:     "openrouter",
		Model:        "openai/gpt-oss-120b",
		RequiredEnv:  "OPENROUTER_API_KEY",
		RoutingHints: []string{"groq"},
	}
}

func TestRemediateListsServingProviders(t *testing.T) {
	lister := &stubLister{endpoints: map[string][]llm.GatewayEndpoint{
		"openai/gpt-oss-120b": {
			{Name: "Cerebras | openai/gpt-oss-120b", ProviderName: "Cerebras"},
			{Name: "Together | openai/gpt-oss-120b", ProviderName: "Together"},
			{ProviderName: "Cerebras"},
		},
	}}
	d := Diagnostics{NoAllowedProviders: true}
	attempts := []Attempt{directAttempt("openai", "gpt-5.2", "OPENAI_API_KEY"), gatewayAttempt()}

	d.Remediate(context.Background(), attempts, Snapshot{}, func(Attempt, Snapshot) EndpointLister { return lister }, time.Second)

	want := "routing is restricted to groq; providers serving these models: openai/gpt-oss-120b: Cerebras, Together; adjust gateway.only in your config"
	if d.Remediation != want {
		t.Errorf("Remediation = %q\nwant %q", d.Remediation, want)
	}
	if lister.calls != 1 {
		t.Errorf("calls = %d, want 1 (direct attempts are not probed)", lister.calls)
	}
}

func TestRemediateProbeFailureKeepsOriginalError(t *testing.T) {
	lister := &stubLister{err: errors.New("gateway down")}
	original := errors.New("no allowed providers are available")
	d := Diagnostics{NoAllowedProviders: true, LastError: original}

	d.Remediate(context.Background(), []Attempt{gatewayAttempt()}, Snapshot{}, func(Attempt, Snapshot) EndpointLister { return lister }, time.Second)

	if lister.calls != 1 {
		t.Errorf("probe should run once, calls = %d", lister.calls)
	}
	if strings.Contains(d.Remediation, "providers serving") {
		t.Errorf("Remediation = %q, should not list providers", d.Remediation)
	}
	if !errors.Is(d.Err(), original) {
		t.Errorf("Err() = %v, should wrap the original", d.Err())
	}
}

func TestRemediateSkippedWithoutFlag(t *testing.T) {
	lister := &stubLister{}
	d := Diagnostics{}
	d.Remediate(context.Background(), []Attempt{gatewayAttempt()}, Snapshot{}, func(Attempt, Snapshot) EndpointLister { return lister }, time.Second)
	if lister.calls != 0 || d.Remediation != "" {
		t.Errorf("remediation ran without the flag: calls=%d remediation=%q", lister.calls, d.Remediation)
	}
}

func TestDefaultListerFactoryNeedsCredential(t *testing.T) {
	if l := DefaultListerFactory(gatewayAttempt(), Snapshot{}); l != nil {
		t.Error("expected nil lister without a credential")
	}
	snap := Snapshot{Credentials: map[string]string{"OPENROUTER_API_KEY": "sk-or"}}
	if l := DefaultListerFactory(gatewayAttempt(), snap); l == nil {
		t.Error("expected a lister with a credential")
	}
}

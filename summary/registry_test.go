// ABOUTME: Tests for the capability registry: ranking, capability exclusion and provider lists.
// ABOUTME: Also covers pinned-model resolution and gateway/OpenAI overrides on produced attempts.

package summary

import (
	"testing"

	"github.com/2389-research/summarize/llm"
)

func labels(attempts []Attempt) []string {
	out := make([]string, len(attempts))
	for i, a := range attempts {
		out[i] = a.Model
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestChainFollowsCatalogOrder(t *testing.T) {
	reg := NewRegistry(nil)
	chain := reg.Chain(TaskText, Snapshot{})
	models := reg.Catalog().ListModels("")

	if len(chain) != len(models) {
		t.Fatalf("chain has %d attempts, catalog has %d models", len(chain), len(models))
	}
	for i, m := range models {
		if chain[i].Model != m.ID {
			t.Errorf("chain[%d] = %s, want %s", i, chain[i].Model, m.ID)
		}
	}
}

func TestChainExcludesModelsWithoutCapability(t *testing.T) {
	reg := NewRegistry(nil)
	chain := labels(reg.Chain(TaskVideo, Snapshot{}))

	if len(chain) == 0 {
		t.Fatal("expected at least one video-capable model")
	}
	for _, id := range chain {
		if !reg.Catalog().GetModelInfo(id).SupportsVideo {
			t.Errorf("%s in video chain without video support", id)
		}
	}
	if contains(chain, "claude-haiku-4-5") || contains(chain, "cli/claude") {
		t.Errorf("video chain %v contains text-only models", chain)
	}
}

func TestChainPreferenceRanksFirst(t *testing.T) {
	reg := NewRegistry(nil, WithPreference([]string{"sonnet", "gpt-5.2", "does-not-exist", "sonnet"}))
	chain := labels(reg.Chain(TaskText, Snapshot{}))

	if chain[0] != "claude-sonnet-4-5" || chain[1] != "gpt-5.2" {
		t.Errorf("chain head = %v, want preference first", chain[:2])
	}
	seen := map[string]bool{}
	for _, id := range chain {
		if seen[id] {
			t.Errorf("duplicate %s in chain", id)
		}
		seen[id] = true
	}
}

func TestChainEnableDisableLists(t *testing.T) {
	reg := NewRegistry(nil)

	enabled := reg.Chain(TaskText, Snapshot{Enabled: []string{"anthropic"}})
	for _, a := range enabled {
		if a.Provider != "anthropic" {
			t.Errorf("enabled-only chain has %s", a.Label())
		}
	}
	if len(enabled) != 2 {
		t.Errorf("enabled chain = %v, want both anthropic models", labels(enabled))
	}

	disabled := reg.Chain(TaskText, Snapshot{Disabled: []string{"anthropic", "openai"}})
	for _, a := range disabled {
		if a.Provider == "anthropic" || a.Provider == "openai" {
			t.Errorf("disabled provider in chain: %s", a.Label())
		}
	}
}

func TestChainGatewayOnlyDropsDirectAttempts(t *testing.T) {
	reg := NewRegistry(nil, WithGatewayOnly(true), WithGatewayHints([]string{"groq", "cerebras"}))
	chain := reg.Chain(TaskText, Snapshot{})

	var gateway int
	for _, a := range chain {
		if a.Transport == llm.TransportDirect {
			t.Errorf("direct attempt %s in gateway-only chain", a.Label())
		}
		if a.Transport == llm.TransportGateway {
			gateway++
			if len(a.RoutingHints) != 2 || a.RoutingHints[0] != "groq" {
				t.Errorf("gateway attempt hints = %v", a.RoutingHints)
			}
		}
	}
	if gateway == 0 {
		t.Error("expected a gateway attempt")
	}
}

func TestCandidatesFilterByCredentials(t *testing.T) {
	reg := NewRegistry(nil)
	snap := Snapshot{
		Credentials: map[string]string{"ANTHROPIC_API_KEY": "k", "OPENAI_API_KEY": "   "},
		LocalTools:  map[string]string{"codex": "/usr/local/bin/codex"},
	}
	got := labels(reg.Candidates(TaskText, snap))
	want := []string{"claude-haiku-4-5", "claude-sonnet-4-5", "cli/codex"}
	if len(got) != len(want) {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidates[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFixedResolvesAliasAndIgnoresProviderLists(t *testing.T) {
	reg := NewRegistry(nil)
	a, err := reg.Fixed("haiku", TaskText)
	if err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	if a.Model != "claude-haiku-4-5" || a.RequiredEnv != "ANTHROPIC_API_KEY" {
		t.Errorf("attempt = %+v", a)
	}
}

func TestFixedRejectsUnsupportedTask(t *testing.T) {
	reg := NewRegistry(nil)
	if _, err := reg.Fixed("claude-haiku-4-5", TaskVideo); err == nil {
		t.Error("expected an error pinning a text model for video")
	}
	if _, err := reg.Fixed("nope", TaskText); err == nil {
		t.Error("expected an error for an unknown model")
	}
}

func TestFixedInfersUncataloguedProviderModel(t *testing.T) {
	reg := NewRegistry(nil)
	a, err := reg.Fixed("anthropic/claude-opus-4-1", TaskText)
	if err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	if a.Provider != "anthropic" || a.Model != "claude-opus-4-1" || a.Transport != llm.TransportDirect {
		t.Errorf("attempt = %+v", a)
	}
}

func TestLocalToolAttemptsForceNonStreaming(t *testing.T) {
	reg := NewRegistry(nil)
	a, err := reg.Fixed("claude-cli", TaskText)
	if err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	if !a.ForceNonStreaming || a.Tool != "claude" {
		t.Errorf("attempt = %+v", a)
	}
	if a.Requirement() != "claude (local tool)" {
		t.Errorf("Requirement() = %q", a.Requirement())
	}
}

func TestOpenAIOverride(t *testing.T) {
	reg := NewRegistry(nil, WithOpenAIOverride("http://localhost:11434/v1", "LOCAL_OPENAI_KEY"))
	a, err := reg.Fixed("gpt-5.2", TaskText)
	if err != nil {
		t.Fatalf("Fixed: %v", err)
	}
	if a.BaseURL != "http://localhost:11434/v1" || a.RequiredEnv != "LOCAL_OPENAI_KEY" {
		t.Errorf("attempt = %+v", a)
	}
}

func TestParseTaskKind(t *testing.T) {
	tests := []struct {
		in      string
		want    TaskKind
		wantErr bool
	}{
		{"", TaskText, false},
		{"website", TaskWebsite, false},
		{"video-understanding", TaskVideo, false},
		{"podcast", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTaskKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTaskKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}

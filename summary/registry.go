// ABOUTME: Provider capability registry that turns the model catalog into ranked attempt chains.
// ABOUTME: Filters by task capability and provider enable/disable lists, ranks by a declared preference list.

package summary

import (
	"fmt"
	"strings"

	"github.com/2389-research/summarize/llm"
)

// TaskKind is the kind of input being summarized.
type TaskKind string

const (
	TaskText            TaskKind = "text"
	TaskImage           TaskKind = "image"
	TaskVideo           TaskKind = "video-understanding"
	TaskWebsite         TaskKind = "website"
	TaskVideoTranscript TaskKind = "video-transcript-based"
)

// ParseTaskKind validates a task kind name. An empty string means TaskText.
func ParseTaskKind(s string) (TaskKind, error) {
	switch k := TaskKind(s); k {
	case "":
		return TaskText, nil
	case TaskText, TaskImage, TaskVideo, TaskWebsite, TaskVideoTranscript:
		return k, nil
	default:
		return "", fmt.Errorf("unknown task kind %q", s)
	}
}

// RequiredContent is the content kind a model must accept for this task.
// Websites and transcripts arrive as extracted text.
func (k TaskKind) RequiredContent() llm.ContentKind {
	switch k {
	case TaskImage:
		return llm.ContentImage
	case TaskVideo:
		return llm.ContentVideo
	default:
		return llm.ContentText
	}
}

// Registry answers "which attempts can serve this task, in what order".
// It is pure with respect to its inputs and safe for concurrent use once built.
type Registry struct {
	catalog       *llm.Catalog
	preference    []string
	gatewayHints  []string
	gatewayOnly   bool
	openAIBaseURL string
	openAIKeyEnv  string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPreference ranks the named models (ids, aliases or provider/model)
// ahead of the catalog order. Unknown names are ignored.
func WithPreference(models []string) RegistryOption {
	return func(r *Registry) {
		r.preference = append([]string(nil), models...)
	}
}

// WithGatewayHints restricts gateway attempts to the given upstream providers.
func WithGatewayHints(providers []string) RegistryOption {
	return func(r *Registry) {
		r.gatewayHints = append([]string(nil), providers...)
	}
}

// WithGatewayOnly drops direct attempts so every network call goes through
// the gateway. Local tools are unaffected.
func WithGatewayOnly(only bool) RegistryOption {
	return func(r *Registry) {
		r.gatewayOnly = only
	}
}

// WithOpenAIOverride points OpenAI attempts at an OpenAI-compatible endpoint,
// optionally reading the key from a different variable.
func WithOpenAIOverride(baseURL, keyEnv string) RegistryOption {
	return func(r *Registry) {
		r.openAIBaseURL = baseURL
		r.openAIKeyEnv = keyEnv
	}
}

// NewRegistry builds a Registry over the given catalog. A nil catalog means
// llm.DefaultCatalog().
func NewRegistry(catalog *llm.Catalog, opts ...RegistryOption) *Registry {
	if catalog == nil {
		catalog = llm.DefaultCatalog()
	}
	r := &Registry{catalog: catalog}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the catalog the registry ranks.
func (r *Registry) Catalog() *llm.Catalog {
	return r.catalog
}

// Chain returns the auto-mode fallback chain for a task: every model that can
// serve the task and whose provider is allowed, ranked by preference. Missing
// credentials are not filtered here; the orchestrator records them so the
// final error can name them.
func (r *Registry) Chain(task TaskKind, snap Snapshot) []Attempt {
	need := task.RequiredContent()
	var out []Attempt
	seen := make(map[string]bool)

	add := func(m *llm.ModelInfo) {
		if m == nil || seen[m.ID] {
			return
		}
		seen[m.ID] = true
		if !m.Supports(need) || !snap.ProviderAllowed(m.Provider) {
			return
		}
		if r.gatewayOnly && m.Transport == llm.TransportDirect {
			return
		}
		out = append(out, r.attemptFor(m))
	}

	for _, name := range r.preference {
		add(r.catalog.GetModelInfo(name))
	}
	for _, m := range r.catalog.ListModels("") {
		add(r.catalog.GetModelInfo(m.ID))
	}
	return out
}

// Candidates is Chain narrowed to attempts whose credential or tool is
// present in the snapshot.
func (r *Registry) Candidates(task TaskKind, snap Snapshot) []Attempt {
	var out []Attempt
	for _, a := range r.Chain(task, snap) {
		if snap.Available(a) {
			out = append(out, a)
		}
	}
	return out
}

// Fixed resolves a pinned model into its single attempt. Unlike Chain it does
// not consult the enable/disable lists: pinning a model is an explicit choice.
// It still refuses a model that cannot serve the task.
func (r *Registry) Fixed(model string, task TaskKind) (Attempt, error) {
	m := r.catalog.GetModelInfo(model)
	if m == nil {
		m = r.inferModel(model)
	}
	if m == nil {
		return Attempt{}, fmt.Errorf("unknown model %q", model)
	}
	if need := task.RequiredContent(); !m.Supports(need) {
		return Attempt{}, fmt.Errorf("model %s cannot summarize %s input", m.ID, task)
	}
	return r.attemptFor(m), nil
}

// inferModel accepts "provider/model" for uncatalogued models of a known
// provider, borrowing the provider's transport and credential.
func (r *Registry) inferModel(spec string) *llm.ModelInfo {
	provider, model, ok := strings.Cut(spec, "/")
	if !ok || model == "" {
		return nil
	}
	known := r.catalog.ListModels(provider)
	if len(known) == 0 {
		return nil
	}
	m := known[0]
	m.ID = model
	m.DisplayName = model
	m.Aliases = nil
	m.MaxOutput = 0
	return &m
}

func (r *Registry) attemptFor(m *llm.ModelInfo) Attempt {
	a := Attempt{
		Transport:         m.Transport,
		Provider:          m.Provider,
		Model:             m.ID,
		RequiredEnv:       m.CredentialEnv,
		Tool:              m.Tool,
		BaseURL:           m.BaseURL,
		ForceNonStreaming: m.Transport == llm.TransportLocalTool,
	}
	if m.Transport == llm.TransportGateway && len(r.gatewayHints) > 0 {
		a.RoutingHints = append([]string(nil), r.gatewayHints...)
	}
	if m.Provider == "openai" && r.openAIBaseURL != "" {
		a.BaseURL = r.openAIBaseURL
		if r.openAIKeyEnv != "" {
			a.RequiredEnv = r.openAIKeyEnv
		}
	}
	return a
}

// MaxOutput returns the output-token budget for an attempt, clamped to the
// model's ceiling when the catalog knows it.
func (r *Registry) MaxOutput(a Attempt, requested int) int {
	if m := r.catalog.GetModelInfo(a.Model); m != nil && m.Provider == a.Provider {
		return m.CapOutput(requested)
	}
	return requested
}

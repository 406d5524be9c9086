// ABOUTME: Model catalog describing each known summarization model's transport, credential and content support.
// ABOUTME: Supports lookup by ID or alias, listing by provider, capability checks, output ceilings and custom registration.

package llm

// Transport identifies how an attempt reaches its model.
type Transport string

const (
	TransportDirect    Transport = "direct"
	TransportGateway   Transport = "gateway"
	TransportLocalTool Transport = "local-tool"
)

// ModelInfo describes a single model's capabilities and metadata.
type ModelInfo struct {
	ID                   string    // e.g., "claude-sonnet-4-5"
	Provider             string    // e.g., "anthropic"
	DisplayName          string    // e.g., "Claude Sonnet 4.5"
	Transport            Transport // direct API, gateway or local CLI
	CredentialEnv        string    // environment variable holding the API key; empty for local tools
	Tool                 string    // executable name for local-tool models
	BaseURL              string    // OpenAI-compatible endpoint for providers reached through the compat client
	ContextWindow        int       // max total tokens
	MaxOutput            int       // max output tokens, 0 if unknown
	SupportsImages       bool
	SupportsVideo        bool
	SupportsDocuments    bool
	InputCostPerMillion  float64  // USD per 1M input tokens, 0 if unknown
	OutputCostPerMillion float64  // USD per 1M output tokens, 0 if unknown
	Aliases              []string // shorthand names
}

// Supports reports whether the model accepts content of the given kind.
// Every model accepts text.
func (m *ModelInfo) Supports(kind ContentKind) bool {
	switch kind {
	case ContentText, "":
		return true
	case ContentImage:
		return m.SupportsImages
	case ContentVideo:
		return m.SupportsVideo
	case ContentDocument:
		return m.SupportsDocuments
	default:
		return false
	}
}

// CapOutput clamps a requested output-token budget to the model's ceiling.
// A zero request means "use the ceiling"; a zero ceiling means unbounded.
func (m *ModelInfo) CapOutput(requested int) int {
	if m.MaxOutput <= 0 {
		return requested
	}
	if requested <= 0 || requested > m.MaxOutput {
		return m.MaxOutput
	}
	return requested
}

// Catalog holds a collection of ModelInfo entries and supports lookup and filtering.
type Catalog struct {
	models []ModelInfo
}

// builtinModels returns the default set of known models. The order here is
// the default auto-mode preference: cheap and fast first.
func builtinModels() []ModelInfo {
	return []ModelInfo{
		// Gemini
		{
			ID:                   "gemini-3-flash-preview",
			Provider:             "gemini",
			DisplayName:          "Gemini 3 Flash (Preview)",
			Transport:            TransportDirect,
			CredentialEnv:        "GEMINI_API_KEY",
			ContextWindow:        1048576,
			MaxOutput:            65536,
			SupportsImages:       true,
			SupportsVideo:        true,
			SupportsDocuments:    true,
			InputCostPerMillion:  0.5,
			OutputCostPerMillion: 3,
			Aliases:              []string{"gemini-flash", "gemini-3-flash"},
		},

		// OpenAI
		{
			ID:                   "gpt-5.2-mini",
			Provider:             "openai",
			DisplayName:          "GPT-5.2 Mini",
			Transport:            TransportDirect,
			CredentialEnv:        "OPENAI_API_KEY",
			ContextWindow:        400000,
			MaxOutput:            128000,
			SupportsImages:       true,
			SupportsDocuments:    true,
			InputCostPerMillion:  0.25,
			OutputCostPerMillion: 2,
			Aliases:              []string{"gpt5-mini"},
		},

		// Anthropic
		{
			ID:                   "claude-haiku-4-5",
			Provider:             "anthropic",
			DisplayName:          "Claude Haiku 4.5",
			Transport:            TransportDirect,
			CredentialEnv:        "ANTHROPIC_API_KEY",
			ContextWindow:        200000,
			MaxOutput:            64000,
			SupportsImages:       true,
			SupportsDocuments:    true,
			InputCostPerMillion:  1,
			OutputCostPerMillion: 5,
			Aliases:              []string{"haiku", "claude-haiku"},
		},

		// xAI through its OpenAI-compatible endpoint
		{
			ID:                   "grok-4-fast",
			Provider:             "xai",
			DisplayName:          "Grok 4 Fast",
			Transport:            TransportDirect,
			CredentialEnv:        "XAI_API_KEY",
			BaseURL:              "https://api.x.ai/v1",
			ContextWindow:        2000000,
			MaxOutput:            30000,
			SupportsImages:       true,
			InputCostPerMillion:  0.2,
			OutputCostPerMillion: 0.5,
			Aliases:              []string{"grok"},
		},

		// Gateway
		{
			ID:                   "openai/gpt-oss-120b",
			Provider:             "openrouter",
			DisplayName:          "GPT-OSS 120B (OpenRouter)",
			Transport:            TransportGateway,
			CredentialEnv:        "OPENROUTER_API_KEY",
			BaseURL:              DefaultGatewayBaseURL,
			ContextWindow:        131072,
			MaxOutput:            32768,
			InputCostPerMillion:  0.1,
			OutputCostPerMillion: 0.5,
			Aliases:              []string{"gpt-oss"},
		},

		{
			ID:                   "gemini-3-pro-preview",
			Provider:             "gemini",
			DisplayName:          "Gemini 3 Pro (Preview)",
			Transport:            TransportDirect,
			CredentialEnv:        "GEMINI_API_KEY",
			ContextWindow:        1048576,
			MaxOutput:            65536,
			SupportsImages:       true,
			SupportsVideo:        true,
			SupportsDocuments:    true,
			InputCostPerMillion:  2,
			OutputCostPerMillion: 12,
			Aliases:              []string{"gemini-pro", "gemini-3-pro"},
		},
		{
			ID:                   "gpt-5.2",
			Provider:             "openai",
			DisplayName:          "GPT-5.2",
			Transport:            TransportDirect,
			CredentialEnv:        "OPENAI_API_KEY",
			ContextWindow:        400000,
			MaxOutput:            128000,
			SupportsImages:       true,
			SupportsDocuments:    true,
			InputCostPerMillion:  1.75,
			OutputCostPerMillion: 14,
			Aliases:              []string{"gpt5"},
		},
		{
			ID:                   "claude-sonnet-4-5",
			Provider:             "anthropic",
			DisplayName:          "Claude Sonnet 4.5",
			Transport:            TransportDirect,
			CredentialEnv:        "ANTHROPIC_API_KEY",
			ContextWindow:        200000,
			MaxOutput:            64000,
			SupportsImages:       true,
			SupportsDocuments:    true,
			InputCostPerMillion:  3,
			OutputCostPerMillion: 15,
			Aliases:              []string{"sonnet", "claude-sonnet"},
		},

		// Local command-line tools
		{
			ID:            "cli/claude",
			Provider:      "claude-cli",
			DisplayName:   "Claude CLI",
			Transport:     TransportLocalTool,
			Tool:          "claude",
			ContextWindow: 200000,
			Aliases:       []string{"claude-cli"},
		},
		{
			ID:            "cli/codex",
			Provider:      "codex-cli",
			DisplayName:   "Codex CLI",
			Transport:     TransportLocalTool,
			Tool:          "codex",
			ContextWindow: 400000,
			Aliases:       []string{"codex-cli"},
		},
		{
			ID:            "cli/gemini",
			Provider:      "gemini-cli",
			DisplayName:   "Gemini CLI",
			Transport:     TransportLocalTool,
			Tool:          "gemini",
			ContextWindow: 1048576,
			Aliases:       []string{"gemini-cli"},
		},
	}
}

// DefaultCatalog returns a new Catalog pre-populated with built-in model definitions.
// Each call returns an independent copy so registrations on one catalog do not affect others.
func DefaultCatalog() *Catalog {
	return &Catalog{
		models: builtinModels(),
	}
}

// GetModelInfo looks up a model by its canonical ID or any of its aliases.
// A "provider/model" form is also accepted when the provider matches.
// Returns nil if no matching model is found.
func (c *Catalog) GetModelInfo(modelID string) *ModelInfo {
	for i := range c.models {
		if c.models[i].ID == modelID || c.models[i].Provider+"/"+c.models[i].ID == modelID {
			return &c.models[i]
		}
		for _, alias := range c.models[i].Aliases {
			if alias == modelID {
				return &c.models[i]
			}
		}
	}
	return nil
}

// ListModels returns all models matching the given provider, in catalog order.
// If provider is empty, all models in the catalog are returned.
func (c *Catalog) ListModels(provider string) []ModelInfo {
	var result []ModelInfo
	for _, m := range c.models {
		if provider == "" || m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// Register adds a model to the catalog. If a model with the same ID already exists,
// it is replaced in place, keeping its preference position.
func (c *Catalog) Register(model ModelInfo) {
	for i := range c.models {
		if c.models[i].ID == model.ID {
			c.models[i] = model
			return
		}
	}
	c.models = append(c.models, model)
}

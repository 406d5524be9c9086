// ABOUTME: Transport variants (direct API, gateway, local tool) behind one adapter-building interface.
// ABOUTME: Each variant owns its credential check and how it constructs a provider adapter.

package summary

import (
	"context"
	"fmt"

	muxllm "github.com/2389-research/mux/llm"

	"github.com/2389-research/summarize/llm"
)

// transport builds provider adapters for one transport kind.
type transport interface {
	// adapter returns a ready adapter or a *llm.ConfigurationError when the
	// attempt's credential or tool is unavailable.
	adapter(ctx context.Context, a Attempt, snap Snapshot) (llm.ProviderAdapter, error)
}

var transports = map[llm.Transport]transport{
	llm.TransportDirect:    directTransport{},
	llm.TransportGateway:   gatewayTransport{},
	llm.TransportLocalTool: localToolTransport{},
}

// NewAdapter is the default AdapterFactory: it dispatches on the attempt's
// transport kind.
func NewAdapter(ctx context.Context, a Attempt, snap Snapshot) (llm.ProviderAdapter, error) {
	t, ok := transports[a.Transport]
	if !ok {
		return nil, fmt.Errorf("unknown transport %q for %s", a.Transport, a.Label())
	}
	return t.adapter(ctx, a, snap)
}

func missingCredential(a Attempt) error {
	return &llm.ConfigurationError{SDKError: llm.SDKError{
		Message: fmt.Sprintf("%s requires %s", a.Label(), a.Requirement()),
	}}
}

// directTransport talks to a provider's own API through mux, or through the
// OpenAI-compatible client when the attempt carries a base URL.
type directTransport struct{}

func (directTransport) adapter(ctx context.Context, a Attempt, snap Snapshot) (llm.ProviderAdapter, error) {
	key, ok := snap.Credential(a.RequiredEnv)
	if !ok {
		return nil, missingCredential(a)
	}

	if a.BaseURL != "" {
		client := llm.NewOpenAICompatClient(key, a.Model, a.BaseURL, llm.WithProviderName(a.Provider))
		return llm.NewMuxAdapter(a.Provider, client), nil
	}

	var client muxllm.Client
	switch a.Provider {
	case "anthropic":
		client = muxllm.NewAnthropicClient(key, a.Model)
	case "openai":
		client = muxllm.NewOpenAIClient(key, a.Model)
	case "gemini":
		gc, err := muxllm.NewGeminiClient(ctx, key, a.Model)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		client = gc
	default:
		return nil, &llm.ConfigurationError{SDKError: llm.SDKError{
			Message: fmt.Sprintf("no direct client for provider %q; set a base URL for OpenAI-compatible providers", a.Provider),
		}}
	}
	return llm.NewMuxAdapter(a.Provider, client), nil
}

// gatewayTransport routes through an OpenAI-compatible gateway, optionally
// restricted to specific upstream providers.
type gatewayTransport struct{}

func (gatewayTransport) adapter(_ context.Context, a Attempt, snap Snapshot) (llm.ProviderAdapter, error) {
	key, ok := snap.Credential(a.RequiredEnv)
	if !ok {
		return nil, missingCredential(a)
	}
	client := gatewayClient(a, key)
	return llm.NewMuxAdapter(a.Provider, client), nil
}

func gatewayClient(a Attempt, key string) *llm.OpenAICompatClient {
	baseURL := a.BaseURL
	if baseURL == "" {
		baseURL = llm.DefaultGatewayBaseURL
	}
	return llm.NewOpenAICompatClient(key, a.Model, baseURL,
		llm.WithProviderName(a.Provider),
		llm.WithRoutingHints(a.RoutingHints),
	)
}

// localToolTransport runs a command-line tool installed on this machine.
type localToolTransport struct{}

func (localToolTransport) adapter(_ context.Context, a Attempt, snap Snapshot) (llm.ProviderAdapter, error) {
	path, ok := snap.ToolPath(a.Tool)
	if !ok {
		return nil, missingCredential(a)
	}
	return NewLocalToolAdapter(a.Tool, path), nil
}

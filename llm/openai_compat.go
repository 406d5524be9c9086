// ABOUTME: OpenAI Chat Completions client with base URL support for compatible providers and gateways.
// ABOUTME: Adds gateway routing hints, in-stream usage, status-coded error mapping and the provider endpoint probe.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	muxllm "github.com/2389-research/mux/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultGatewayBaseURL is the OpenAI-compatible endpoint of the routing
// gateway used for gateway transport attempts.
const DefaultGatewayBaseURL = "https://openrouter.ai/api/v1"

// OpenAICompatClient implements muxllm.Client using the OpenAI Chat Completions
// API. Unlike mux's built-in OpenAIClient, this supports custom base URLs for
// OpenAI-compatible providers and routing gateways.
type OpenAICompatClient struct {
	client       openai.Client
	model        string
	provider     string
	routingHints []string
}

// CompatOption configures an OpenAICompatClient.
type CompatOption func(*OpenAICompatClient)

// WithRoutingHints restricts the gateway to the named upstream providers.
// The gateway rejects the request with "no allowed providers" when none of
// them serve the model.
func WithRoutingHints(hints []string) CompatOption {
	return func(c *OpenAICompatClient) {
		c.routingHints = append([]string(nil), hints...)
	}
}

// WithProviderName overrides the provider name reported in errors.
func WithProviderName(name string) CompatOption {
	return func(c *OpenAICompatClient) {
		c.provider = name
	}
}

// NewOpenAICompatClient creates a Chat Completions client with a custom base URL.
// This uses /v1/chat/completions (not /v1/responses), which is the standard
// endpoint supported by all OpenAI-compatible providers.
func NewOpenAICompatClient(apiKey, model, baseURL string, opts ...CompatOption) *OpenAICompatClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	c := &OpenAICompatClient{
		client:   openai.NewClient(reqOpts...),
		model:    model,
		provider: "openai",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMessage sends a message and returns the complete response.
func (c *OpenAICompatClient) CreateMessage(ctx context.Context, req *muxllm.Request) (*muxllm.Response, error) {
	params := c.params(req)
	resp, err := c.client.Chat.Completions.New(ctx, params, c.requestOptions()...)
	if err != nil {
		return nil, c.mapError(err)
	}
	return convertCompatResponse(resp), nil
}

// CreateMessageStream sends a message and returns a channel of streaming events.
func (c *OpenAICompatClient) CreateMessageStream(ctx context.Context, req *muxllm.Request) (<-chan muxllm.StreamEvent, error) {
	params := c.params(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := c.client.Chat.Completions.NewStreaming(ctx, params, c.requestOptions()...)

	// The first Next call performs the HTTP round trip. Doing it here lets
	// connection-phase failures (auth, 400 streaming unsupported, 429)
	// surface as a returned error instead of an in-band event.
	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err == nil {
			err = &StreamError{SDKError: SDKError{Message: "stream closed before first chunk"}}
		}
		return nil, c.mapError(err)
	}

	eventChan := make(chan muxllm.StreamEvent, 100)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("component=llm.openai_compat action=stream_panic provider=%s err=%v", c.provider, r)
				eventChan <- muxllm.StreamEvent{
					Type:  muxllm.EventError,
					Error: fmt.Errorf("panic in stream processing: %v", r),
				}
			}
			_ = stream.Close()
			close(eventChan)
		}()

		var acc openai.ChatCompletionAccumulator

		eventChan <- muxllm.StreamEvent{Type: muxllm.EventMessageStart}

		for first := true; first || stream.Next(); first = false {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				eventChan <- muxllm.StreamEvent{
					Type: muxllm.EventContentDelta,
					Text: chunk.Choices[0].Delta.Content,
				}
			}
		}

		if err := stream.Err(); err != nil {
			eventChan <- muxllm.StreamEvent{
				Type:  muxllm.EventError,
				Error: c.mapError(err),
			}
			return
		}

		eventChan <- muxllm.StreamEvent{
			Type:     muxllm.EventMessageStop,
			Response: convertCompatResponse(&acc.ChatCompletion),
		}
	}()

	return eventChan, nil
}

// GatewayEndpoint is one upstream provider serving a model behind the gateway.
type GatewayEndpoint struct {
	Name         string `json:"name"`
	ProviderName string `json:"provider_name"`
}

type endpointsEnvelope struct {
	Data struct {
		Endpoints []GatewayEndpoint `json:"endpoints"`
	} `json:"data"`
}

// ListEndpoints asks the gateway which upstream providers serve the given
// model. Callers use it to explain "no allowed providers" failures.
func (c *OpenAICompatClient) ListEndpoints(ctx context.Context, model string) ([]GatewayEndpoint, error) {
	var env endpointsEnvelope
	path := "models/" + escapeModelPath(model) + "/endpoints"
	if err := c.client.Get(ctx, path, nil, &env); err != nil {
		return nil, c.mapError(err)
	}
	return env.Data.Endpoints, nil
}

// escapeModelPath escapes each segment of a vendor/model id while keeping the
// separating slash the gateway expects.
func escapeModelPath(model string) string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *OpenAICompatClient) params(req *muxllm.Request) openai.ChatCompletionNewParams {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	return convertCompatRequest(req)
}

func (c *OpenAICompatClient) requestOptions() []option.RequestOption {
	if len(c.routingHints) == 0 {
		return nil
	}
	return []option.RequestOption{
		option.WithJSONSet("provider.only", c.routingHints),
		option.WithJSONSet("provider.allow_fallbacks", false),
	}
}

// mapError converts openai-go API errors into the status-coded hierarchy.
func (c *OpenAICompatClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = err.Error()
		}
		var retryAfter *float64
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return ErrorFromStatusCode(apiErr.StatusCode, msg, c.provider, apiErr.Code, nil, retryAfter)
	}
	return err
}

// convertCompatRequest converts a mux Request to OpenAI ChatCompletionNewParams.
func convertCompatRequest(req *muxllm.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}

	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var messages []openai.ChatCompletionMessageParamUnion

	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case muxllm.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case muxllm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	params.Messages = messages

	return params
}

// convertCompatResponse converts OpenAI ChatCompletion to a mux Response.
func convertCompatResponse(resp *openai.ChatCompletion) *muxllm.Response {
	result := &muxllm.Response{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: muxllm.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}

	if len(resp.Choices) == 0 {
		return result
	}

	choice := resp.Choices[0]

	switch choice.FinishReason {
	case "length":
		result.StopReason = muxllm.StopReasonMaxTokens
	default:
		result.StopReason = muxllm.StopReasonEndTurn
	}

	if choice.Message.Content != "" {
		result.Content = append(result.Content, muxllm.ContentBlock{
			Type: muxllm.ContentTypeText,
			Text: choice.Message.Content,
		})
	}

	return result
}

// Compile-time interface assertion.
var _ muxllm.Client = (*OpenAICompatClient)(nil)

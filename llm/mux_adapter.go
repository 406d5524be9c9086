// ABOUTME: Adapter that wraps a mux/llm.Client as a summarize ProviderAdapter.
// ABOUTME: Translates requests, responses and stream events, and classifies mux errors into this package's hierarchy.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	muxllm "github.com/2389-research/mux/llm"
)

// defaultMaxTokens is sent when a request leaves MaxTokens unset; several
// providers reject requests without an explicit ceiling.
const defaultMaxTokens = 4096

// MuxAdapter wraps a mux/llm.Client as a ProviderAdapter. Direct provider
// APIs (Anthropic, OpenAI, Gemini) and the openai-go backed compat client
// all reach the runner through it.
type MuxAdapter struct {
	client muxllm.Client
	name   string
	retry  RetryPolicy
}

// NewMuxAdapter creates a MuxAdapter with the given provider name and mux client.
func NewMuxAdapter(name string, client muxllm.Client) *MuxAdapter {
	policy := RateLimitRetryPolicy()
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		log.Printf("component=llm.mux action=rate_limit_retry provider=%s attempt=%d delay=%s err=%v", name, attempt+1, delay, err)
	}
	return &MuxAdapter{name: name, client: client, retry: policy}
}

// WithRetryPolicy replaces the connection-phase retry policy. Tests use it to
// disable backoff.
func (a *MuxAdapter) WithRetryPolicy(policy RetryPolicy) *MuxAdapter {
	a.retry = policy
	return a
}

// Name returns the provider name for this adapter.
func (a *MuxAdapter) Name() string {
	return a.name
}

// Complete sends a blocking request through the mux client. Rate limit
// errors are retried with backoff before the call is reported as failed.
func (a *MuxAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	muxReq := convertRequest(req)

	var muxResp *muxllm.Response
	err := Retry(ctx, a.retry, func() error {
		var callErr error
		muxResp, callErr = a.client.CreateMessage(ctx, muxReq)
		return callErr
	})
	if err != nil {
		return nil, a.classify(ctx, err)
	}
	return convertResponse(muxResp, a.name), nil
}

// Stream sends a streaming request through the mux client and converts each
// mux event into a StreamEvent. Only the connection is retried; once events
// flow, errors are delivered in-band as StreamErrorEvt.
func (a *MuxAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	muxReq := convertRequest(req)

	var muxCh <-chan muxllm.StreamEvent
	err := Retry(ctx, a.retry, func() error {
		var callErr error
		muxCh, callErr = a.client.CreateMessageStream(ctx, muxReq)
		return callErr
	})
	if err != nil {
		return nil, a.classify(ctx, err)
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		var blockType muxllm.ContentType
		for muxEvt := range muxCh {
			if muxEvt.Type == muxllm.EventContentStart && muxEvt.Block != nil {
				blockType = muxEvt.Block.Type
			}

			evt, ok := a.convertStreamEvent(ctx, muxEvt, blockType)
			if muxEvt.Type == muxllm.EventContentStop {
				blockType = ""
			}
			if !ok {
				continue
			}
			select {
			case ch <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close releases any resources held by the adapter. The underlying mux client
// does not expose a Close method, so this is a no-op.
func (a *MuxAdapter) Close() error {
	return nil
}

// classify maps a raw mux/SDK error onto this package's error hierarchy so
// the runner and orchestrator can make fallback decisions without string
// matching of their own.
func (a *MuxAdapter) classify(ctx context.Context, err error) error {
	var classified interface{ IsRetryable() bool }
	if errors.As(err, &classified) {
		return err
	}
	msg := fmt.Sprintf("%s request failed", a.name)
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return &AbortError{SDKError: SDKError{Message: msg, Cause: err}}
	case errors.Is(err, context.DeadlineExceeded):
		return &RequestTimeoutError{SDKError: SDKError{Message: msg, Cause: err}}
	case IsStreamingUnsupported(err):
		return &StreamingUnsupportedError{SDKError: SDKError{Message: msg, Cause: err}}
	case IsNoAllowedProviders(err):
		return &NoAllowedProvidersError{providerSubtype{ProviderError{
			SDKError: SDKError{Message: msg, Cause: err},
			Provider: a.name,
		}}}
	case IsRateLimit(err):
		return &RateLimitError{providerSubtype{ProviderError{
			SDKError:   SDKError{Message: msg, Cause: err},
			Provider:   a.name,
			StatusCode: 429,
			Retryable:  true,
		}}}
	default:
		return &ProviderError{SDKError: SDKError{Message: msg, Cause: err}, Provider: a.name}
	}
}

// convertRequest translates a Request into a mux Request. System messages are
// extracted into the mux Request.System field. Attachment parts have no mux
// equivalent and are dropped; the registry never routes media tasks to
// models that need them inline.
func convertRequest(req Request) *muxllm.Request {
	systemText, remaining := ExtractSystemMessages(req.Messages)

	muxReq := &muxllm.Request{
		Model:       req.Model,
		System:      systemText,
		Temperature: req.Temperature,
		MaxTokens:   defaultMaxTokens,
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		muxReq.MaxTokens = *req.MaxTokens
	}

	for _, msg := range remaining {
		role := muxllm.RoleUser
		if msg.Role == RoleAssistant {
			role = muxllm.RoleAssistant
		}
		muxReq.Messages = append(muxReq.Messages, muxllm.Message{
			Role:    role,
			Content: msg.TextContent(),
		})
	}
	return muxReq
}

// convertResponse translates a mux Response into a Response, keeping only
// text blocks.
func convertResponse(resp *muxllm.Response, providerName string) *Response {
	out := &Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Provider:     providerName,
		FinishReason: mapStopReason(resp.StopReason),
		Usage:        convertUsage(resp.Usage),
	}
	for _, block := range resp.Content {
		if block.Type == muxllm.ContentTypeText {
			out.Text += block.Text
		}
	}
	return out
}

func convertUsage(u muxllm.Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		TotalTokens:  u.InputTokens + u.OutputTokens,
	}
}

// mapStopReason translates a mux StopReason into a finish reason string.
func mapStopReason(reason muxllm.StopReason) string {
	switch reason {
	case muxllm.StopReasonEndTurn:
		return FinishStop
	case muxllm.StopReasonMaxTokens:
		return FinishLength
	default:
		return FinishOther
	}
}

// convertStreamEvent translates a mux StreamEvent. The boolean result is
// false for events that carry nothing the runner needs (block boundaries,
// tool-use deltas).
func (a *MuxAdapter) convertStreamEvent(ctx context.Context, evt muxllm.StreamEvent, blockType muxllm.ContentType) (StreamEvent, bool) {
	switch evt.Type {
	case muxllm.EventMessageStart:
		se := StreamEvent{Type: StreamStart}
		if evt.Response != nil && (evt.Response.Usage.InputTokens > 0 || evt.Response.Usage.OutputTokens > 0) {
			u := convertUsage(evt.Response.Usage)
			se.Usage = &u
		}
		return se, true

	case muxllm.EventContentDelta:
		if blockType == muxllm.ContentTypeToolUse || evt.Text == "" {
			return StreamEvent{}, false
		}
		return StreamEvent{Type: StreamTextDelta, Delta: evt.Text}, true

	case muxllm.EventMessageDelta, muxllm.EventMessageStop:
		se := StreamEvent{Type: StreamFinish}
		if evt.Response != nil {
			u := convertUsage(evt.Response.Usage)
			se.Usage = &u
			se.Response = convertResponse(evt.Response, a.name)
		}
		return se, true

	case muxllm.EventError:
		return StreamEvent{Type: StreamErrorEvt, Error: a.classify(ctx, evt.Error)}, true

	default:
		return StreamEvent{}, false
	}
}

// Compile-time interface assertion.
var _ ProviderAdapter = (*MuxAdapter)(nil)

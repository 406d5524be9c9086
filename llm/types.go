// ABOUTME: Core data model types for provider calls made by the summarize pipeline.
// ABOUTME: Defines Message, Request, Response, Usage, and the normalized StreamEvent union.

package llm

import (
	"strings"
	"time"
)

// Role represents who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind discriminates the type of content in a ContentPart.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentImage    ContentKind = "image"
	ContentVideo    ContentKind = "video"
	ContentDocument ContentKind = "document"
)

// MediaData holds binary attachment content as URL, raw bytes, or both.
type MediaData struct {
	URL       string `json:"url,omitempty"`
	Data      []byte `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

// ContentPart is a single piece of content within a message.
// The Kind field determines whether Text or Media is populated.
type ContentPart struct {
	Kind  ContentKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Media *MediaData  `json:"media,omitempty"`
}

// TextPart creates a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// MediaPart creates an attachment ContentPart of the given kind.
func MediaPart(kind ContentKind, media MediaData) ContentPart {
	return ContentPart{Kind: kind, Media: &media}
}

// Message is the fundamental unit of a prompt.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// TextContent returns concatenated text from all text content parts.
func (m *Message) TextContent() string {
	var b strings.Builder
	for _, part := range m.Content {
		if part.Kind == ContentText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// HasKind reports whether any part of the message carries the given content kind.
func (m *Message) HasKind(kind ContentKind) bool {
	for _, part := range m.Content {
		if part.Kind == kind {
			return true
		}
	}
	return false
}

// SystemMessage creates a system role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

// UserMessage creates a user role message with text.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// AssistantMessage creates an assistant role message with text.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart(text)}}
}

// FinishReason values reported by adapters.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishOther  = "other"
)

// Usage tracks token consumption for a single provider call.
type Usage struct {
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	TotalTokens  int      `json:"total_tokens"`
	CostUSD      *float64 `json:"cost_usd,omitempty"` // reported by local tools only
}

// Add combines two Usage values, summing all fields.
func (u Usage) Add(other Usage) Usage {
	result := Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
	if u.CostUSD != nil || other.CostUSD != nil {
		var cost float64
		if u.CostUSD != nil {
			cost += *u.CostUSD
		}
		if other.CostUSD != nil {
			cost += *other.CostUSD
		}
		result.CostUSD = &cost
	}
	return result
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0 && u.CostUSD == nil
}

// Request is the unified input for both Complete and Stream.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`

	// RoutingHints restricts a gateway to the named sub-providers. Direct
	// adapters ignore it.
	RoutingHints []string `json:"routing_hints,omitempty"`
}

// IntPtr returns a pointer to an int value.
func IntPtr(v int) *int {
	return &v
}

// Response is the unified output from a Complete call.
type Response struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// StreamEventType discriminates the type of streaming event.
type StreamEventType string

const (
	StreamStart     StreamEventType = "stream_start"
	StreamTextDelta StreamEventType = "text_delta"
	StreamFinish    StreamEventType = "finish"
	StreamErrorEvt  StreamEventType = "error"
)

// StreamEvent represents a single event in a streaming response. Delta holds
// whatever the provider sent, which may be a true delta or a cumulative
// snapshot of the whole buffer; callers normalize it with stream.Merge.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Delta    string          `json:"delta,omitempty"`
	Usage    *Usage          `json:"usage,omitempty"`
	Response *Response       `json:"response,omitempty"`
	Error    error           `json:"-"`
}

// AdapterTimeout specifies timeout durations at the adapter level.
type AdapterTimeout struct {
	Connect   time.Duration `json:"connect"`
	Request   time.Duration `json:"request"`
	FirstByte time.Duration `json:"first_byte"`
}

// DefaultAdapterTimeout returns sensible defaults for adapter timeouts.
func DefaultAdapterTimeout() AdapterTimeout {
	return AdapterTimeout{
		Connect:   10 * time.Second,
		Request:   120 * time.Second,
		FirstByte: 30 * time.Second,
	}
}

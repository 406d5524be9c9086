// ABOUTME: ProviderAdapter interface shared by every transport that can generate text.
// ABOUTME: Provides system-message extraction and stream draining helpers used by the adapters and the runner.

package llm

import (
	"context"
	"strings"
)

// ProviderAdapter is the interface that all provider adapters implement. It
// gives the runner a uniform way to request a blocking completion or a
// streamed one from direct APIs, gateways and local command-line tools alike.
type ProviderAdapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
	Close() error
}

// ExtractSystemMessages separates system role messages from the rest.
// It concatenates the text content of all system messages (joined by newlines)
// and returns them along with the remaining non-system messages.
func ExtractSystemMessages(messages []Message) (systemText string, remaining []Message) {
	var systemParts []string

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if text := msg.TextContent(); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}
		remaining = append(remaining, msg)
	}

	return strings.Join(systemParts, "\n"), remaining
}

// FlattenMessages renders a message list as a single plain-text prompt for
// transports that only accept one text payload (local command-line tools).
func FlattenMessages(messages []Message) string {
	if len(messages) == 1 && messages[0].Role == RoleUser {
		return messages[0].TextContent()
	}
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case RoleSystem:
			b.WriteString("Instructions:\n")
		case RoleAssistant:
			b.WriteString("Assistant:\n")
		}
		b.WriteString(msg.TextContent())
	}
	return b.String()
}

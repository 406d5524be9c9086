// ABOUTME: Bubble Tea message types carrying consumer sink calls into the reader's message loop.
// ABOUTME: Each type mirrors one consumer.Sink method.
package tui

import (
	"github.com/2389-research/summarize/consumer"
	"github.com/2389-research/summarize/events"
)

// ResetMsg clears the reader for a new session.
type ResetMsg struct{}

// PhaseMsg reports a controller phase change.
type PhaseMsg struct {
	Phase consumer.Phase
}

// AppendMsg carries newly appended summary text.
type AppendMsg struct {
	Text string
}

// StatusMsg replaces the status line.
type StatusMsg struct {
	Text string
}

// MetaMsg carries the merged run metadata.
type MetaMsg struct {
	Meta events.Meta
}

// MetricsMsg carries the final metrics line.
type MetricsMsg struct {
	Summary string
}

// ErrorMsg carries a terminal error message.
type ErrorMsg struct {
	Message string
}

// FinishedMsg tells the reader the session is over and the program can exit.
type FinishedMsg struct{}

// ABOUTME: ReaderModel is an inline Bubble Tea model that renders a streamed summary as it arrives.
// ABOUTME: Shows a spinner and status line while connecting or streaming, then metrics or the error.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/summarize/consumer"
	"github.com/2389-research/summarize/events"
)

// ReaderOption configures optional ReaderModel behavior.
type ReaderOption func(*ReaderModel)

// WithCancel sets the function called when the user presses ctrl+c, such as
// a controller's Abort.
func WithCancel(fn func()) ReaderOption {
	return func(m *ReaderModel) {
		m.onCancel = fn
	}
}

// WithMarkdown renders the finished summary as markdown using a glamour
// standard style such as "dark", "light" or "notty".
func WithMarkdown(style string) ReaderOption {
	return func(m *ReaderModel) {
		m.markdownStyle = style
	}
}

// ReaderModel displays one summary session without the alt screen so the
// final text stays in the terminal scrollback.
type ReaderModel struct {
	title         string
	spinner       spinner.Model
	onCancel      func()
	markdownStyle string

	phase    consumer.Phase
	started  bool
	text     strings.Builder
	rendered string
	status   string
	meta     events.Meta
	metrics  string
	errMsg   string

	cancelled bool
	quitting  bool
	width     int
}

// NewReaderModel creates a ReaderModel with the given header title.
func NewReaderModel(title string, opts ...ReaderOption) *ReaderModel {
	m := &ReaderModel{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(StreamingStyle)),
		phase:   consumer.PhaseIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Text returns the summary text received so far.
func (m *ReaderModel) Text() string {
	return m.text.String()
}

// Err returns the terminal error message, if any.
func (m *ReaderModel) Err() string {
	return m.errMsg
}

// Cancelled reports whether the user interrupted the session.
func (m *ReaderModel) Cancelled() bool {
	return m.cancelled
}

// Init implements tea.Model.
func (m *ReaderModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *ReaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case ResetMsg:
		m.text.Reset()
		m.rendered = ""
		m.status = ""
		m.meta = events.Meta{}
		m.metrics = ""
		m.errMsg = ""
		m.started = false
		return m, nil

	case PhaseMsg:
		m.phase = msg.Phase
		switch msg.Phase {
		case consumer.PhaseConnecting, consumer.PhaseStreaming:
			m.started = true
		case consumer.PhaseIdle, consumer.PhaseError:
			if msg.Phase == consumer.PhaseIdle {
				m.rendered = m.renderMarkdown()
			}
			if m.started {
				return m.quit()
			}
		}
		return m, nil

	case AppendMsg:
		m.text.WriteString(msg.Text)
		return m, nil

	case StatusMsg:
		m.status = msg.Text
		return m, nil

	case MetaMsg:
		m.meta = msg.Meta
		return m, nil

	case MetricsMsg:
		m.metrics = msg.Summary
		return m, nil

	case ErrorMsg:
		m.errMsg = msg.Message
		return m, nil

	case FinishedMsg:
		return m.quit()

	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			if m.onCancel != nil {
				m.onCancel()
			}
			return m.quit()
		}
	}
	return m, nil
}

func (m *ReaderModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

// View implements tea.Model.
func (m *ReaderModel) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.rendered != "" {
		b.WriteString(m.rendered)
		b.WriteString("\n")
	} else if text := m.text.String(); text != "" {
		if m.width > 0 {
			text = lipgloss.NewStyle().Width(m.width).Render(text)
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	switch {
	case m.errMsg != "":
		b.WriteString(ErrorStyle.Render("✗ " + m.errMsg))
		b.WriteString("\n")
	case m.cancelled:
		b.WriteString(IdleStyle.Render("cancelled"))
		b.WriteString("\n")
	case m.phase == consumer.PhaseConnecting || m.phase == consumer.PhaseStreaming:
		status := m.status
		if status == "" {
			status = string(m.phase)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), StyleForPhase(m.phase).Render(status)))
	case m.metrics != "":
		b.WriteString(MetricsStyle.Render(m.metrics))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMarkdown returns the glamour rendering of the text, or "" when
// markdown is off or rendering fails.
func (m *ReaderModel) renderMarkdown() string {
	text := m.text.String()
	if m.markdownStyle == "" || strings.TrimSpace(text) == "" {
		return ""
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(m.markdownStyle)}
	if m.width > 0 {
		opts = append(opts, glamour.WithWordWrap(m.width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return ""
	}
	out, err := r.Render(text)
	if err != nil {
		return ""
	}
	return strings.TrimRight(out, "\n")
}

func (m *ReaderModel) renderHeader() string {
	parts := []string{TitleStyle.Render(m.title)}
	if m.meta.ModelLabel != "" {
		parts = append(parts, MetaStyle.Render(m.meta.ModelLabel))
	} else if m.meta.Model != "" {
		parts = append(parts, MetaStyle.Render(m.meta.Model))
	}
	if m.meta.InputSummary != "" {
		parts = append(parts, MetaStyle.Render(m.meta.InputSummary))
	}
	if m.meta.SummaryFromCache != nil && *m.meta.SummaryFromCache {
		parts = append(parts, CacheStyle.Render("cached"))
	}
	return strings.Join(parts, MetaStyle.Render(" · "))
}

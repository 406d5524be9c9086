// ABOUTME: Tests for the inline ReaderModel message handling and rendering.
// ABOUTME: Drives the model with sink messages and inspects View output and quit commands.
package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/summarize/consumer"
	"github.com/2389-research/summarize/events"
)

func send(m *ReaderModel, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestReaderModelStreamsText(t *testing.T) {
	m := NewReaderModel("summarize")
	send(m,
		ResetMsg{},
		PhaseMsg{Phase: consumer.PhaseConnecting},
		StatusMsg{Text: "Summarizing with openai/gpt-5.2-mini…"},
		MetaMsg{Meta: events.Meta{ModelLabel: "openai/gpt-5.2-mini", InputSummary: "12 words · text"}},
		PhaseMsg{Phase: consumer.PhaseStreaming},
		AppendMsg{Text: "Hello"},
		AppendMsg{Text: " world"},
	)

	view := m.View()
	for _, want := range []string{"summarize", "openai/gpt-5.2-mini", "12 words · text", "Hello world", "Summarizing with"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if m.Text() != "Hello world" {
		t.Errorf("Text = %q", m.Text())
	}
}

func TestReaderModelQuitsWhenIdleAfterStart(t *testing.T) {
	m := NewReaderModel("summarize")
	if cmd := send(m, PhaseMsg{Phase: consumer.PhaseIdle}); isQuit(cmd) {
		t.Error("idle before start should not quit")
	}

	cmd := send(m,
		PhaseMsg{Phase: consumer.PhaseConnecting},
		AppendMsg{Text: "done text"},
		MetricsMsg{Summary: "gpt-5.2-mini · 1.2s"},
		PhaseMsg{Phase: consumer.PhaseIdle},
	)
	if !isQuit(cmd) {
		t.Fatal("expected quit after idle")
	}
	if !strings.Contains(m.View(), "gpt-5.2-mini · 1.2s") {
		t.Errorf("view should show metrics:\n%s", m.View())
	}
}

func TestReaderModelShowsError(t *testing.T) {
	m := NewReaderModel("summarize")
	cmd := send(m,
		PhaseMsg{Phase: consumer.PhaseConnecting},
		ErrorMsg{Message: "stream ended unexpectedly"},
		PhaseMsg{Phase: consumer.PhaseError},
	)
	if !isQuit(cmd) {
		t.Fatal("expected quit after error")
	}
	if m.Err() != "stream ended unexpectedly" {
		t.Errorf("Err = %q", m.Err())
	}
	if !strings.Contains(m.View(), "stream ended unexpectedly") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestReaderModelCtrlCCancels(t *testing.T) {
	aborted := false
	m := NewReaderModel("summarize", WithCancel(func() { aborted = true }))
	send(m, PhaseMsg{Phase: consumer.PhaseStreaming})

	cmd := send(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !aborted {
		t.Error("cancel func not called")
	}
	if !isQuit(cmd) || !m.Cancelled() {
		t.Error("expected quit and cancelled state")
	}
	if !strings.Contains(m.View(), "cancelled") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestReaderModelResetClearsState(t *testing.T) {
	fromCache := true
	m := NewReaderModel("summarize")
	send(m,
		MetaMsg{Meta: events.Meta{Model: "m", SummaryFromCache: &fromCache}},
		AppendMsg{Text: "old"},
		ErrorMsg{Message: "old error"},
	)
	if !strings.Contains(m.View(), "cached") {
		t.Errorf("view should flag cached summary:\n%s", m.View())
	}
	send(m, ResetMsg{})
	if m.Text() != "" || m.Err() != "" {
		t.Errorf("after reset Text=%q Err=%q", m.Text(), m.Err())
	}
	if strings.Contains(m.View(), "cached") {
		t.Error("reset should clear meta")
	}
}

func TestReaderModelFinishedQuits(t *testing.T) {
	m := NewReaderModel("summarize")
	if !isQuit(send(m, FinishedMsg{})) {
		t.Error("FinishedMsg should quit")
	}
}

func TestReaderModelRendersMarkdownWhenDone(t *testing.T) {
	raw := "# Key points\n\n- first item\n- second item"
	m := NewReaderModel("summarize", WithMarkdown("notty"))
	send(m,
		PhaseMsg{Phase: consumer.PhaseStreaming},
		AppendMsg{Text: raw},
	)
	if !strings.Contains(m.View(), raw) {
		t.Errorf("raw text expected while streaming:\n%s", m.View())
	}
	send(m, PhaseMsg{Phase: consumer.PhaseIdle})
	view := m.View()
	if strings.Contains(view, raw) {
		t.Errorf("markdown should be rendered:\n%s", view)
	}
	for _, want := range []string{"Key points", "first item", "second item"} {
		if !strings.Contains(view, want) {
			t.Errorf("rendered view missing %q:\n%s", want, view)
		}
	}
	if m.Text() != raw {
		t.Errorf("Text should stay raw, got %q", m.Text())
	}
}

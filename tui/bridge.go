// ABOUTME: Sinks connecting a consumer.Controller to output: a Bubble Tea program or a plain writer.
// ABOUTME: ProgramSink forwards sink calls as tea messages; WriterSink prints text and status lines directly.
package tui

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/summarize/consumer"
	"github.com/2389-research/summarize/events"
)

// ProgramSink implements consumer.Sink by sending messages into a Bubble
// Tea program. Typically created with program.Send.
type ProgramSink struct {
	send func(msg tea.Msg)
}

// NewProgramSink creates a ProgramSink that sends via the given function.
func NewProgramSink(send func(msg tea.Msg)) *ProgramSink {
	return &ProgramSink{send: send}
}

var _ consumer.Sink = (*ProgramSink)(nil)

func (s *ProgramSink) Reset() { s.send(ResetMsg{}) }
func (s *ProgramSink) Phase(p consumer.Phase) { s.send(PhaseMsg{Phase: p}) }
func (s *ProgramSink) Append(text string) { s.send(AppendMsg{Text: text}) }
func (s *ProgramSink) Status(text string) { s.send(StatusMsg{Text: text}) }
func (s *ProgramSink) Meta(m events.Meta) { s.send(MetaMsg{Meta: m}) }
func (s *ProgramSink) Metrics(summary string) { s.send(MetricsMsg{Summary: summary}) }
func (s *ProgramSink) Error(message string) { s.send(ErrorMsg{Message: message}) }

// WriterSink prints summary text to out as it arrives and everything else
// to diag. It is used when stdout is not a terminal.
type WriterSink struct {
	mu      sync.Mutex
	out     io.Writer
	diag    io.Writer
	verbose bool
	wrote   bool
}

// NewWriterSink creates a WriterSink. With verbose set, status and meta
// updates are printed to diag as well.
func NewWriterSink(out, diag io.Writer, verbose bool) *WriterSink {
	return &WriterSink{out: out, diag: diag, verbose: verbose}
}

var _ consumer.Sink = (*WriterSink)(nil)

// Reset starts a new session. Text already printed cannot be withdrawn, so
// a separator is written when a previous session produced output.
func (s *WriterSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wrote {
		fmt.Fprintln(s.out)
		fmt.Fprintln(s.out, "---")
	}
	s.wrote = false
}

func (s *WriterSink) Phase(p consumer.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == consumer.PhaseIdle && s.wrote {
		fmt.Fprintln(s.out)
	}
}

func (s *WriterSink) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		return
	}
	s.wrote = true
	_, _ = io.WriteString(s.out, text)
}

func (s *WriterSink) Status(text string) {
	if !s.verbose {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.diag, "%s\n", text)
}

func (s *WriterSink) Meta(m events.Meta) {
	if !s.verbose || m.ModelLabel == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.diag, "model: %s\n", m.ModelLabel)
}

func (s *WriterSink) Metrics(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.diag, "%s\n", summary)
}

func (s *WriterSink) Error(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.diag, "error: %s\n", message)
}

// ABOUTME: Drives a consumer.Controller for one run and renders it inline or as plain text.
// ABOUTME: Shared by the local, remote and watch modes; maps the session outcome to an exit code.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/2389-research/summarize/consumer"
	"github.com/2389-research/summarize/stream"
	"github.com/2389-research/summarize/tui"
)

// exitCancelled is the conventional exit code after SIGINT.
const exitCancelled = 130

// session describes one run to present.
type session struct {
	title  string
	source consumer.Source
	runID  string
	mode   stream.Mode
	// addr is the daemon address, used in unreachable hints.
	addr string
	// onFirst is called once when the first content arrives.
	onFirst func(runID string)
	// onCancel is called when the user interrupts the session.
	onCancel func()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// present renders s until its run finishes and returns the exit code.
func present(ctx context.Context, opts options, s session, stdout, stderr io.Writer) int {
	if !opts.plain && isTerminal(stdout) {
		return presentTUI(ctx, s, stdout, stderr)
	}
	return presentPlain(ctx, opts, s, stdout, stderr)
}

func (s session) controllerOptions() []consumer.Option {
	var opts []consumer.Option
	if s.onFirst != nil {
		opts = append(opts, consumer.WithFirstContent(s.onFirst))
	}
	return opts
}

func presentPlain(ctx context.Context, opts options, s session, stdout, stderr io.Writer) int {
	sink := tui.NewWriterSink(stdout, stderr, opts.verbose)
	ctrl := consumer.New(s.source, sink, s.controllerOptions()...)
	done := ctrl.Start(ctx, consumer.Run{ID: s.runID, Mode: s.mode})

	select {
	case <-done:
	case <-ctx.Done():
		ctrl.Abort()
		if s.onCancel != nil {
			s.onCancel()
		}
		fmt.Fprintln(stderr, "cancelled")
		return exitCancelled
	}
	return exitCode(ctrl, s, stderr)
}

func presentTUI(ctx context.Context, s session, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewReaderModel(s.title, tui.WithCancel(cancel), tui.WithMarkdown("dark"))
	progOpts := []tea.ProgramOption{tea.WithOutput(stdout)}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		progOpts = append(progOpts, tea.WithInputTTY())
	}
	p := tea.NewProgram(model, progOpts...)

	ctrl := consumer.New(s.source, tui.NewProgramSink(p.Send), s.controllerOptions()...)
	go func() {
		done := ctrl.Start(ctx, consumer.Run{ID: s.runID, Mode: s.mode})
		select {
		case <-done:
		case <-ctx.Done():
		}
		p.Send(tui.FinishedMsg{})
	}()

	if _, err := p.Run(); err != nil {
		ctrl.Abort()
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	ctrl.Abort()
	if model.Cancelled() || ctx.Err() != nil {
		if s.onCancel != nil {
			s.onCancel()
		}
		return exitCancelled
	}
	return exitCode(ctrl, s, stderr)
}

// exitCode reports the controller outcome. Errors were already shown by
// the sink; daemon connection failures get a hint.
func exitCode(ctrl *consumer.Controller, s session, stderr io.Writer) int {
	err := ctrl.Err()
	if err == nil {
		return 0
	}
	if s.addr != "" && consumer.IsDaemonUnreachable(err) {
		fmt.Fprintln(stderr, consumer.Describe(err, s.addr))
	}
	return 1
}

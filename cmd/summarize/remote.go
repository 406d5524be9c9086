// ABOUTME: Remote and watch modes: submit to a running daemon or attach to an existing run.
// ABOUTME: Streams events over SSE and forwards interrupts and seen markers to the daemon.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/2389-research/summarize/config"
	"github.com/2389-research/summarize/consumer"
	"github.com/2389-research/summarize/daemon"
	"github.com/2389-research/summarize/stream"
)

func runRemote(ctx context.Context, cfg *config.Config, opts options, content string, stdout, stderr io.Writer) int {
	client := daemon.NewClient(cfg.Daemon.Addr, cfg.Daemon.Token)
	req := daemon.SubmitRequest{
		Content:   content,
		Task:      opts.task,
		Model:     opts.model,
		Length:    opts.length,
		Language:  opts.language,
		SourceURL: opts.url,
		UseCache:  opts.useCache,
	}
	if opts.noStream {
		streaming := false
		req.Streaming = &streaming
	}

	resp, err := client.Submit(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", consumer.Describe(err, cfg.Daemon.Addr))
		return 1
	}
	if opts.verbose {
		fmt.Fprintf(stderr, "run %s\n", resp.ID)
	}

	var onFirst func(string)
	if opts.url != "" {
		onFirst = func(runID string) {
			markCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.MarkSeen(markCtx, runID); err != nil {
				log.Printf("component=cli action=mark_seen_failed run=%s err=%v", runID, err)
			}
		}
	}

	return present(ctx, opts, session{
		title:    "summarize",
		source:   consumer.FromClient(client.Events()),
		runID:    resp.ID,
		mode:     stream.ModeSummarize,
		addr:     cfg.Daemon.Addr,
		onFirst:  onFirst,
		onCancel: cancelRemote(client, resp.ID),
	}, stdout, stderr)
}

func runWatch(ctx context.Context, cfg *config.Config, opts options, stdout, stderr io.Writer) int {
	client := daemon.NewClient(cfg.Daemon.Addr, cfg.Daemon.Token)
	return present(ctx, opts, session{
		title:  "summarize · " + opts.watch,
		source: consumer.FromClient(client.Events()),
		runID:  opts.watch,
		mode:   stream.ModeSummarize,
		addr:   cfg.Daemon.Addr,
	}, stdout, stderr)
}

// cancelRemote asks the daemon to stop the run.
func cancelRemote(client *daemon.Client, runID string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Cancel(ctx, runID); err != nil {
			log.Printf("component=cli action=cancel_failed run=%s err=%v", runID, err)
		}
	}
}

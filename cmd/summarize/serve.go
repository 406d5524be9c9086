// ABOUTME: Daemon mode: opens run history and serves the summarize HTTP API until interrupted.
// ABOUTME: Runs left running by a previous process are marked interrupted on start.

package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/2389-research/summarize/config"
	"github.com/2389-research/summarize/daemon"
	"github.com/2389-research/summarize/summary"
)

func runDaemon(ctx context.Context, cfg *config.Config, stderr io.Writer) int {
	log.SetOutput(stderr)

	store, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	srv := daemon.NewServer(cfg.Daemon.Token, newSummarizer(cfg),
		daemon.WithStore(store),
		daemon.WithDefaults(daemon.Defaults{
			Model:           cfg.Model,
			Length:          summary.Length(cfg.Length),
			Language:        cfg.Language,
			Streaming:       cfg.StreamingEnabled(),
			MaxOutputTokens: cfg.MaxOutputTokens,
		}),
	)
	if err := srv.Recover(ctx); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
	if cfg.Daemon.Token == "" {
		log.Printf("component=daemon action=start auth=disabled addr=%s", cfg.Daemon.Addr)
	}
	if err := srv.ListenAndServe(ctx, cfg.Daemon.Addr); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// ABOUTME: One-shot mode: summarizes in-process and reads the run back through a local hub.
// ABOUTME: Records the run in history, serves -cache hits and marks -url seen on first content.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/2389-research/summarize/config"
	"github.com/2389-research/summarize/consumer"
	"github.com/2389-research/summarize/daemon"
	"github.com/2389-research/summarize/events"
	"github.com/2389-research/summarize/history"
	"github.com/2389-research/summarize/stream"
	"github.com/2389-research/summarize/summary"
)

// job is a resolved summarize request.
type job struct {
	task    summary.TaskKind
	content string
	url     string
	request summary.Request
}

// resolveJob applies flags over config.
func resolveJob(cfg *config.Config, opts options, content string) (job, error) {
	task, err := summary.ParseTaskKind(opts.task)
	if err != nil {
		return job{}, err
	}
	model := cfg.Model
	if opts.model != "" {
		model = opts.model
	}
	name := cfg.Length
	if opts.length != "" {
		name = opts.length
	}
	length, err := summary.ParseLength(name)
	if err != nil {
		return job{}, err
	}
	language := cfg.Language
	if opts.language != "" {
		language = opts.language
	}
	return job{
		task:    task,
		content: content,
		url:     opts.url,
		request: summary.Request{
			Task:  task,
			Model: model,
			Prompt: summary.BuildPrompt(content, summary.PromptOptions{
				Task:     task,
				Length:   length,
				Source:   opts.url,
				Language: language,
			}),
			Streaming:       cfg.StreamingEnabled() && !opts.noStream,
			MaxOutputTokens: cfg.MaxOutputTokens,
		},
	}, nil
}

func runLocal(ctx context.Context, cfg *config.Config, sum *summary.Summarizer, opts options, content string, stdout, stderr io.Writer) int {
	j, err := resolveJob(cfg, opts, content)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if _, err := sum.Plan(j.request); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	var store *history.Store
	if j.url != "" {
		store, err = openHistory(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "warning: history unavailable: %v\n", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	hub := events.NewHub()
	runID := daemon.NewRunID()
	run, err := hub.Create(runID)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	produced := make(chan struct{})
	go func() {
		defer close(produced)
		produce(runCtx, sum, store, run, j, opts.useCache)
	}()

	code := present(ctx, opts, session{
		title:    "summarize",
		source:   consumer.FromHub(hub),
		runID:    runID,
		mode:     stream.ModeSummarize,
		onFirst:  seenMarker(store, j.url),
		onCancel: cancelRun,
	}, stdout, stderr)

	cancelRun()
	<-produced
	return code
}

// produce publishes one run into the hub and records it in store.
func produce(ctx context.Context, sum *summary.Summarizer, store *history.Store, run *events.Run, j job, useCache bool) {
	pub := events.NewPublisher(run)
	input := summary.InputSummary(j.content, j.task)
	pub.Start(input)

	rec := history.RunRecord{
		ID:           run.ID(),
		Task:         string(j.task),
		InputSummary: input,
		SourceURL:    j.url,
		CreatedAt:    time.Now().UTC(),
	}

	if useCache && store != nil && j.url != "" {
		cached, err := store.LatestForURL(ctx, j.url)
		switch {
		case err == nil:
			pub.Cached(cached.Text, cached.Model, cached.Metrics)
			return
		case !errors.Is(err, history.ErrNotFound):
			log.Printf("component=cli action=cache_lookup_failed url=%s err=%v", j.url, err)
		}
	}

	out, err := pub.Summarize(ctx, sum, j.request)
	if store == nil {
		return
	}
	if out.Used != nil {
		rec.Model = out.Used.Model
		rec.ModelLabel = out.Used.Label()
	}
	if p := out.Diagnostics.Partial; p != nil {
		rec.Text = p.Text
	}
	switch {
	case err == nil && out.Result != nil:
		rec.Status = history.StatusCompleted
		rec.Model = out.Result.Model
		rec.Text = out.Result.Text
		rec.Metrics = summary.MetricsLine(out.Result.Model, out.Result.Usage, out.Result.Elapsed)
	case ctx.Err() != nil:
		rec.Status = history.StatusCancelled
		rec.Error = errText(out, err)
	default:
		rec.Status = history.StatusFailed
		rec.Error = errText(out, err)
	}
	rec.UpdatedAt = time.Now().UTC()
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.SaveRun(saveCtx, rec); err != nil {
		log.Printf("component=cli action=save_run_failed run=%s err=%v", rec.ID, err)
	}
}

func errText(out summary.Outcome, err error) string {
	if err == nil {
		err = out.Err()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// seenMarker returns a first-content callback that records url as seen.
func seenMarker(store *history.Store, url string) func(runID string) {
	if store == nil || url == "" {
		return nil
	}
	return func(runID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.MarkSeen(ctx, url, runID); err != nil {
			log.Printf("component=cli action=mark_seen_failed url=%s err=%v", url, err)
		}
	}
}

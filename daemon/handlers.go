// ABOUTME: Handlers for submitting runs, reading snapshots, cancelling and recording seen URLs.
// ABOUTME: Each run executes in its own goroutine and publishes into the hub while recording history.

package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/2389-research/summarize/events"
	"github.com/2389-research/summarize/history"
	"github.com/2389-research/summarize/llm"
	"github.com/2389-research/summarize/summary"
)

// SubmitRequest is the body of POST /v1/summarize.
type SubmitRequest struct {
	Content         string `json:"content"`
	Task            string `json:"task,omitempty"`
	Model           string `json:"model,omitempty"`
	Length          string `json:"length,omitempty"`
	Language        string `json:"language,omitempty"`
	SourceURL       string `json:"source_url,omitempty"`
	Streaming       *bool  `json:"streaming,omitempty"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
	// UseCache replays the newest completed summary for SourceURL instead of
	// running a new one.
	UseCache bool `json:"use_cache,omitempty"`
}

// SubmitResponse is returned for an accepted submission.
type SubmitResponse struct {
	ID        string `json:"id"`
	EventsURL string `json:"events_url"`
}

// Snapshot is the current or final state of a run.
type Snapshot struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Task         string    `json:"task,omitempty"`
	Model        string    `json:"model,omitempty"`
	ModelLabel   string    `json:"model_label,omitempty"`
	InputSummary string    `json:"input_summary,omitempty"`
	SourceURL    string    `json:"source_url,omitempty"`
	Text         string    `json:"text"`
	Metrics      string    `json:"metrics,omitempty"`
	Error        string    `json:"error,omitempty"`
	FromCache    bool      `json:"from_cache,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type submission struct {
	id        string
	task      summary.TaskKind
	content   string
	model     string
	length    summary.Length
	language  string
	sourceURL string
	streaming bool
	maxOutput int
	useCache  bool
	created   time.Time
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	sub, err := s.resolve(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	run, err := s.hub.Create(sub.id)
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(s.base)
	s.register(sub.id, cancel)
	s.saveRecord(history.RunRecord{
		ID:           sub.id,
		Status:       history.StatusRunning,
		Task:         string(sub.task),
		InputSummary: summary.InputSummary(sub.content, sub.task),
		SourceURL:    sub.sourceURL,
		CreatedAt:    sub.created,
		UpdatedAt:    sub.created,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.unregister(sub.id)
		s.execute(ctx, run, sub)
	}()

	log.Printf("component=daemon action=submit run=%s task=%s model=%s", sub.id, sub.task, sub.model)
	writeJSON(w, http.StatusAccepted, SubmitResponse{
		ID:        sub.id,
		EventsURL: "/v1/summarize/" + sub.id + "/events",
	})
}

// resolve validates a request and fills defaults.
func (s *Server) resolve(req SubmitRequest) (submission, error) {
	if strings.TrimSpace(req.Content) == "" {
		return submission{}, errors.New("content is required")
	}
	task, err := summary.ParseTaskKind(req.Task)
	if err != nil {
		return submission{}, err
	}
	sub := submission{
		id:        NewRunID(),
		task:      task,
		content:   req.Content,
		model:     req.Model,
		length:    summary.Length(req.Length),
		language:  req.Language,
		sourceURL: req.SourceURL,
		streaming: s.defaults.Streaming,
		maxOutput: req.MaxOutputTokens,
		useCache:  req.UseCache,
		created:   time.Now().UTC(),
	}
	if sub.model == "" {
		sub.model = s.defaults.Model
	}
	if sub.length == "" {
		sub.length = s.defaults.Length
	}
	if sub.length, err = summary.ParseLength(string(sub.length)); err != nil {
		return submission{}, err
	}
	if sub.language == "" {
		sub.language = s.defaults.Language
	}
	if req.Streaming != nil {
		sub.streaming = *req.Streaming
	}
	if sub.maxOutput == 0 {
		sub.maxOutput = s.defaults.MaxOutputTokens
	}
	if sub.maxOutput < 0 {
		return submission{}, errors.New("max_output_tokens must not be negative")
	}
	if _, err := s.summarizer.Plan(summary.Request{Task: sub.task, Model: sub.model}); err != nil {
		return submission{}, err
	}
	return sub, nil
}

// execute runs one summary and publishes its events. It always ends the
// run with a terminal event.
func (s *Server) execute(ctx context.Context, run *events.Run, sub submission) {
	pub := events.NewPublisher(run)
	input := summary.InputSummary(sub.content, sub.task)
	pub.Start(input)

	rec := history.RunRecord{
		ID:           sub.id,
		Task:         string(sub.task),
		InputSummary: input,
		SourceURL:    sub.sourceURL,
		CreatedAt:    sub.created,
	}

	if cached := s.cached(ctx, sub); cached != nil {
		pub.Cached(cached.Text, cached.Model, cached.Metrics)
		rec.Status = history.StatusCompleted
		rec.Model = cached.Model
		rec.ModelLabel = cached.ModelLabel
		rec.Text = cached.Text
		rec.Metrics = cached.Metrics
		s.saveRecord(rec)
		log.Printf("component=daemon action=cache_hit run=%s source=%s from=%s", sub.id, sub.sourceURL, cached.ID)
		return
	}

	out, err := pub.Summarize(ctx, s.summarizer, summary.Request{
		Task:  sub.task,
		Model: sub.model,
		Prompt: summary.BuildPrompt(sub.content, summary.PromptOptions{
			Task:     sub.task,
			Length:   sub.length,
			Source:   sub.sourceURL,
			Language: sub.language,
		}),
		Streaming:       sub.streaming,
		MaxOutputTokens: sub.maxOutput,
	})

	if out.Used != nil {
		rec.Model = out.Used.Model
		rec.ModelLabel = out.Used.Label()
	}
	if p := out.Diagnostics.Partial; p != nil {
		rec.Text = p.Text
	}
	switch {
	case err == nil && out.Result != nil:
		res := out.Result
		rec.Status = history.StatusCompleted
		rec.Model = res.Model
		rec.Text = res.Text
		rec.Metrics = summary.MetricsLine(res.Model, res.Usage, res.Elapsed)
		log.Printf("component=daemon action=completed run=%s model=%s elapsed=%s", sub.id, res.Model, res.Elapsed.Round(time.Millisecond))
	case llm.IsAbort(err) || out.Diagnostics.Aborted:
		rec.Status = history.StatusCancelled
		rec.Error = errorText(out, err)
		log.Printf("component=daemon action=cancelled run=%s", sub.id)
	default:
		rec.Status = history.StatusFailed
		rec.Error = errorText(out, err)
		log.Printf("component=daemon action=failed run=%s err=%q", sub.id, rec.Error)
	}
	s.saveRecord(rec)
}

func errorText(out summary.Outcome, err error) string {
	if err == nil {
		err = out.Err()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *Server) cached(ctx context.Context, sub submission) *history.RunRecord {
	if !sub.useCache || sub.sourceURL == "" || s.store == nil {
		return nil
	}
	rec, err := s.store.LatestForURL(ctx, sub.sourceURL)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			log.Printf("component=daemon action=cache_lookup_failed source=%s err=%v", sub.sourceURL, err)
		}
		return nil
	}
	return rec
}

// saveRecord writes rec with its own deadline so a cancelled run is still
// recorded.
func (s *Server) saveRecord(rec history.RunRecord) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	if err := s.store.SaveRun(ctx, rec); err != nil {
		log.Printf("component=daemon action=save_run_failed run=%s err=%v", rec.ID, err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.snapshot(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := markdownToHTML(snap.Text)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// snapshot prefers the live event log and falls back to the history store
// once the run has been swept from memory.
func (s *Server) snapshot(ctx context.Context, id string) (*Snapshot, error) {
	var rec *history.RunRecord
	if s.store != nil {
		got, err := s.store.GetRun(ctx, id)
		switch {
		case err == nil:
			rec = got
		case !errors.Is(err, history.ErrNotFound):
			return nil, err
		}
	}

	run, live := s.hub.Get(id)
	if !live {
		if rec == nil {
			return nil, history.ErrNotFound
		}
		return fromRecord(rec), nil
	}

	snap := fromEvents(id, run.History(), run.Closed())
	if rec != nil {
		snap.Task = rec.Task
		snap.SourceURL = rec.SourceURL
		snap.CreatedAt = rec.CreatedAt
		snap.UpdatedAt = rec.UpdatedAt
		if rec.Status == history.StatusCancelled {
			snap.Status = rec.Status
		}
	}
	return snap, nil
}

func fromRecord(rec *history.RunRecord) *Snapshot {
	return &Snapshot{
		ID:           rec.ID,
		Status:       rec.Status,
		Task:         rec.Task,
		Model:        rec.Model,
		ModelLabel:   rec.ModelLabel,
		InputSummary: rec.InputSummary,
		SourceURL:    rec.SourceURL,
		Text:         rec.Text,
		Metrics:      rec.Metrics,
		Error:        rec.Error,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

// fromEvents folds a run's event log. Published chunks are deltas, so the
// text is their concatenation.
func fromEvents(id string, evts []events.Event, closed bool) *Snapshot {
	snap := &Snapshot{ID: id, Status: history.StatusRunning}
	var meta events.Meta
	var text strings.Builder
	for _, evt := range evts {
		switch evt.Kind {
		case events.KindChunk:
			text.WriteString(evt.Text)
		case events.KindMeta:
			meta = meta.Merge(evt.Meta)
		case events.KindMetrics:
			snap.Metrics = evt.Summary
		case events.KindError:
			snap.Status = history.StatusFailed
			snap.Error = evt.Message
		case events.KindDone:
			snap.Status = history.StatusCompleted
		}
	}
	if closed && snap.Status == history.StatusRunning {
		snap.Status = history.StatusFailed
	}
	snap.Text = text.String()
	snap.Model = meta.Model
	snap.ModelLabel = meta.ModelLabel
	snap.InputSummary = meta.InputSummary
	snap.FromCache = meta.SummaryFromCache != nil && *meta.SummaryFromCache
	return snap
}

func markdownToHTML(input string) (string, error) {
	var buf bytes.Buffer
	md := goldmark.New()
	if err := md.Convert([]byte(input), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.cancel(id) {
		log.Printf("component=daemon action=cancel run=%s", id)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
		return
	}
	if _, ok := s.hub.Get(id); ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run already finished"})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []Snapshot{})
		return
	}
	runs, err := s.store.ListRuns(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]Snapshot, 0, len(runs))
	for i := range runs {
		out = append(out, *fromRecord(&runs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSeen records that the run's source URL has been shown to a reader.
func (s *Server) handleSeen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.store == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	rec, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rec.SourceURL != "" {
		if err := s.store.MarkSeen(r.Context(), rec.SourceURL, id); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

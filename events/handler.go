// ABOUTME: HTTP handler that streams a run's events as Server-Sent Events with history replay.
// ABOUTME: Honors Last-Event-ID for resumption and validates the negotiated reader mode.

package events

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/2389-research/summarize/llm/sse"
	"github.com/2389-research/summarize/stream"
)

// ModeHeader echoes the reader mode the stream was opened with.
const ModeHeader = "X-Summarize-Mode"

// Handler serves run event streams.
type Handler struct {
	hub       *Hub
	keepAlive time.Duration
}

// NewHandler creates a Handler over hub. keepAlive is the interval for SSE
// comment pings; zero disables them.
func NewHandler(hub *Hub, keepAlive time.Duration) *Handler {
	return &Handler{hub: hub, keepAlive: keepAlive}
}

// Serve writes the events of runID to w until the run finishes or the
// client goes away.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, runID string) {
	mode, err := stream.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	run, ok := h.hub.Get(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	var after uint64
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if n, err := strconv.ParseUint(last, 10, 64); err == nil {
			after = n
		}
	}
	history, sub := run.Subscribe(after)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(ModeHeader, string(mode))
	w.WriteHeader(http.StatusOK)

	enc := sse.NewEncoder(w)
	write := func(evt Event) bool {
		frame, err := evt.SSE()
		if err != nil {
			log.Printf("component=events.handler action=encode_failed run=%s kind=%s err=%v", runID, evt.Kind, err)
			return true
		}
		if err := enc.Encode(frame); err != nil {
			return false
		}
		return !evt.Kind.Terminal()
	}

	for _, evt := range history {
		if !write(evt) {
			return
		}
	}
	// Flush headers even when there was no history to replay.
	if len(history) == 0 {
		_ = enc.Comment("connected")
	}

	var ping <-chan time.Time
	if h.keepAlive > 0 {
		t := time.NewTicker(h.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				if err := sub.Err(); err != nil {
					log.Printf("component=events.handler action=disconnect run=%s sub=%s err=%v", runID, sub.ID, err)
				}
				return
			}
			if !write(evt) {
				return
			}
		case <-ping:
			if err := enc.Comment("ping"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

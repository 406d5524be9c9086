// ABOUTME: End-to-end tests for the SSE handler and client over an httptest server.
// ABOUTME: Covers replay, resumption with Last-Event-ID, mode validation and unexpected stream ends.

package events

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/summarize/stream"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	h := NewHandler(hub, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /v1/summarize/{id}/events
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		h.Serve(w, r, parts[2])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readAll(t *testing.T, r *Reader) ([]Event, error) {
	t.Helper()
	var out []Event
	for {
		evt, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, evt)
	}
}

func TestHandlerStreamsLiveEvents(t *testing.T) {
	hub := NewHub()
	run, _ := hub.Create("run1")
	srv := newTestServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	reader, err := NewClient(srv.URL, "").Open(ctx, "run1", stream.ModeSummarize, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	go func() {
		for _, evt := range []Event{Chunk("Hel"), Chunk("lo wor"), Chunk("ld"), Done()} {
			run.Publish(evt)
		}
	}()

	got, err := readAll(t, reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var text strings.Builder
	for _, evt := range got {
		text.WriteString(evt.Text)
	}
	if text.String() != "Hello world" {
		t.Errorf("text = %q", text.String())
	}
	if got[len(got)-1].Kind != KindDone {
		t.Errorf("last = %+v", got[len(got)-1])
	}
	if reader.LastSeq() != 4 {
		t.Errorf("LastSeq = %d, want 4", reader.LastSeq())
	}
}

func TestHandlerResumesFromLastEventID(t *testing.T) {
	hub := NewHub()
	run, _ := hub.Create("run1")
	for _, evt := range []Event{Chunk("a"), Chunk("b"), Chunk("c"), Done()} {
		run.Publish(evt)
	}
	srv := newTestServer(t, hub)

	reader, err := NewClient(srv.URL, "").Open(context.Background(), "run1", stream.ModeChat, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()
	got, err := readAll(t, reader)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Text != "c" || got[1].Kind != KindDone {
		t.Errorf("got = %+v", got)
	}
}

func TestHandlerRejectsUnknownModeAndRun(t *testing.T) {
	hub := NewHub()
	hub.Create("run1")
	srv := newTestServer(t, hub)
	client := NewClient(srv.URL, "")

	if _, err := client.Open(context.Background(), "run1", stream.Mode("poetry"), 0); err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("err = %v, want a 400", err)
	}
	if _, err := client.Open(context.Background(), "missing", stream.ModeSummarize, 0); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want a 404", err)
	}
}

func TestReaderUnexpectedEnd(t *testing.T) {
	body := io.NopCloser(strings.NewReader("event: chunk\ndata: {\"text\":\"partial\"}\n\n"))
	r := NewReader(body)

	evt, err := r.Next()
	if err != nil || evt.Text != "partial" {
		t.Fatalf("first = %+v, %v", evt, err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrUnexpectedEnd) {
		t.Errorf("err = %v, want ErrUnexpectedEnd", err)
	}
	if ErrUnexpectedEnd.Error() != "stream ended unexpectedly" {
		t.Errorf("message = %q", ErrUnexpectedEnd.Error())
	}
}

func TestReaderSkipsUnknownKindsAndStopsAfterTerminal(t *testing.T) {
	body := io.NopCloser(strings.NewReader(
		"event: heartbeat\ndata: {}\n\n" +
			"event: error\ndata: {\"message\":\"rate limited\"}\n\n" +
			"event: chunk\ndata: {\"text\":\"ignored\"}\n\n"))
	r := NewReader(body)

	evt, err := r.Next()
	if err != nil || evt.Kind != KindError || evt.Message != "rate limited" {
		t.Fatalf("first = %+v, %v", evt, err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("after terminal err = %v, want io.EOF", err)
	}
}

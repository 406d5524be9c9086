// ABOUTME: End-to-end test wiring a run log, the SSE handler and client, and the controller together.
// ABOUTME: Also drives the controller straight off an in-process hub.

package consumer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/2389-research/summarize/events"
)

func TestControllerOverSSE(t *testing.T) {
	hub := events.NewHub()
	run, err := hub.Create("run-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, evt := range []events.Event{
		events.Status("Summarizing…"),
		events.Chunk("Hel"),
		events.Chunk("lo wor"),
		events.Chunk("ld"),
		events.Done(),
	} {
		if _, err := run.Publish(evt); err != nil {
			t.Fatal(err)
		}
	}

	h := events.NewHandler(hub, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		h.Serve(w, r, parts[2])
	}))
	defer srv.Close()

	sink := &recordingSink{}
	var firsts int
	c := New(FromClient(events.NewClient(srv.URL, "secret")), sink, WithFirstContent(func(string) { firsts++ }))

	wait(t, c.Start(context.Background(), Run{ID: "run-1"}))

	if c.Text() != "Hello world" {
		t.Errorf("Text = %q", c.Text())
	}
	if firsts != 1 {
		t.Errorf("first-content fired %d times", firsts)
	}
	if c.Phase() != PhaseIdle || c.Err() != nil {
		t.Errorf("phase = %s err = %v", c.Phase(), c.Err())
	}

	bad := New(FromClient(events.NewClient(srv.URL, "wrong")), &recordingSink{})
	wait(t, bad.Start(context.Background(), Run{ID: "run-1"}))
	if bad.Phase() != PhaseError || !strings.Contains(bad.Err().Error(), "401") {
		t.Errorf("phase = %s err = %v", bad.Phase(), bad.Err())
	}
}

func TestControllerOverLocalHub(t *testing.T) {
	hub := events.NewHub()
	run, err := hub.Create("run-1")
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	c := New(FromHub(hub), sink)
	done := c.Start(context.Background(), Run{ID: "run-1"})

	for _, evt := range []events.Event{events.Chunk("Hello"), events.Chunk(" world"), events.Done()} {
		if _, err := run.Publish(evt); err != nil {
			t.Fatal(err)
		}
	}
	wait(t, done)

	if c.Text() != "Hello world" || c.Phase() != PhaseIdle {
		t.Errorf("text = %q phase = %s", c.Text(), c.Phase())
	}
}

func TestFromHubUnknownRun(t *testing.T) {
	sink := &recordingSink{}
	c := New(FromHub(events.NewHub()), sink)
	wait(t, c.Start(context.Background(), Run{ID: "missing"}))
	if c.Phase() != PhaseError {
		t.Errorf("phase = %s, want error", c.Phase())
	}
}

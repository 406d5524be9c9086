// ABOUTME: Tests for per-run ordering, terminal enforcement, history replay and slow subscribers.
// ABOUTME: Also covers idempotent unsubscribe and retention sweeps.

package events

import (
	"errors"
	"testing"
	"time"
)

func collect(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, evt)
		case <-timeout:
			t.Fatal("timed out waiting for subscription to close")
		}
	}
}

func TestRunDeliversInOrderAndClosesOnTerminal(t *testing.T) {
	run := NewRun("r1")
	_, sub := run.Subscribe(0)

	for _, evt := range []Event{Status("Connecting…"), Chunk("Hel"), Chunk("lo"), Done()} {
		if _, err := run.Publish(evt); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	got := collect(t, sub)
	if len(got) != 4 {
		t.Fatalf("got %d events, want 4", len(got))
	}
	for i, evt := range got {
		if evt.Seq != uint64(i+1) {
			t.Errorf("event %d has seq %d", i, evt.Seq)
		}
	}
	if got[3].Kind != KindDone {
		t.Errorf("last kind = %s", got[3].Kind)
	}
	select {
	case <-run.Done():
	default:
		t.Error("Done channel should be closed")
	}
}

func TestRunRejectsEventsAfterTerminal(t *testing.T) {
	run := NewRun("r1")
	if _, err := run.Publish(Failure("boom")); err != nil {
		t.Fatal(err)
	}
	if _, err := run.Publish(Done()); !errors.Is(err, ErrRunClosed) {
		t.Errorf("err = %v, want ErrRunClosed", err)
	}
	if _, err := run.Publish(Chunk("late")); !errors.Is(err, ErrRunClosed) {
		t.Errorf("err = %v, want ErrRunClosed", err)
	}
	if n := len(run.History()); n != 1 {
		t.Errorf("history has %d events, want 1", n)
	}
}

func TestLateSubscriberGetsHistory(t *testing.T) {
	run := NewRun("r1")
	run.Publish(Chunk("a"))
	run.Publish(Chunk("b"))

	history, sub := run.Subscribe(0)
	if len(history) != 2 || history[0].Text != "a" {
		t.Fatalf("history = %+v", history)
	}
	run.Publish(Done())
	live := collect(t, sub)
	if len(live) != 1 || live[0].Kind != KindDone {
		t.Errorf("live = %+v", live)
	}
}

func TestSubscribeAfterSequence(t *testing.T) {
	run := NewRun("r1")
	run.Publish(Chunk("a"))
	run.Publish(Chunk("b"))
	run.Publish(Chunk("c"))

	history, sub := run.Subscribe(2)
	defer sub.Close()
	if len(history) != 1 || history[0].Text != "c" || history[0].Seq != 3 {
		t.Errorf("history = %+v", history)
	}
	if h, _ := run.Subscribe(10); len(h) != 0 {
		t.Errorf("history past the end = %+v", h)
	}
}

func TestSubscribeToFinishedRun(t *testing.T) {
	run := NewRun("r1")
	run.Publish(Chunk("x"))
	run.Publish(Done())

	history, sub := run.Subscribe(0)
	if len(history) != 2 {
		t.Errorf("history = %+v", history)
	}
	if _, ok := <-sub.C; ok {
		t.Error("subscription to a finished run should be closed")
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	run := NewRun("r1")
	run.buffer = 2
	_, slow := run.Subscribe(0)

	for i := 0; i < 3; i++ {
		run.Publish(Chunk("x"))
	}
	got := collect(t, slow)
	if len(got) != 2 {
		t.Errorf("slow subscriber got %d events before being dropped, want 2", len(got))
	}
	if !errors.Is(slow.Err(), ErrSlowSubscriber) {
		t.Errorf("Err() = %v, want ErrSlowSubscriber", slow.Err())
	}
	if run.Closed() {
		t.Error("dropping a subscriber must not close the run")
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	run := NewRun("r1")
	_, sub := run.Subscribe(0)
	sub.Close()
	sub.Close()
	if _, err := run.Publish(Chunk("still fine")); err != nil {
		t.Errorf("Publish after unsubscribe: %v", err)
	}
}

func TestHubCreateGetSweep(t *testing.T) {
	hub := NewHub(WithRetention(time.Minute))
	run, err := hub.Create("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hub.Create("a"); !errors.Is(err, ErrRunExists) {
		t.Errorf("err = %v, want ErrRunExists", err)
	}
	hub.Create("b")
	run.Publish(Done())

	if n := hub.Sweep(time.Now()); n != 0 {
		t.Errorf("swept %d runs before retention elapsed", n)
	}
	if n := hub.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Errorf("swept %d runs, want 1", n)
	}
	if _, ok := hub.Get("a"); ok {
		t.Error("finished run should be evicted")
	}
	if _, ok := hub.Get("b"); !ok {
		t.Error("running run must not be evicted")
	}
}

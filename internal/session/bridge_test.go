package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/transcriber"
)

func collectEvents(t *testing.T, a *Attempt) []BridgeEvent {
	t.Helper()
	var events []BridgeEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-a.Events:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for bridge events")
		}
	}
}

func TestBridgeForwardsResponsesInOrderThenDone(t *testing.T) {
	clock := newFakeClock()
	rec := &mockRecognizer{script: func(ctx context.Context, _ int, src transcriber.RequestSource, on func(transcriber.Response)) error {
		return drainAndEcho(clock, time.Second)(ctx, src, on)
	}}
	q := queueWith("a", "b", "c")
	q.Close()

	bridge := NewRecognitionBridge(rec)
	a := bridge.Start(context.Background(), NewRequestSource(testOptions().SessionConfig, q, SourceOptions{PollInterval: 5 * time.Millisecond}))
	events := collectEvents(t, a)

	if len(events) != 4 {
		t.Fatalf("expected 3 responses and a terminal event, got %d", len(events))
	}
	for i, want := range []string{"a", "b", "c"} {
		if events[i].Done || events[i].Response.Transcript != want {
			t.Fatalf("event %d: expected %q, got %+v", i, want, events[i])
		}
	}
	last := events[3]
	if !last.Done || last.Err != nil {
		t.Fatalf("expected clean terminal event, got %+v", last)
	}
	if !a.Retire(time.Second) {
		t.Fatal("expected finished worker to retire immediately")
	}
}

func TestBridgeConvertsPanicToTerminalError(t *testing.T) {
	rec := &mockRecognizer{script: func(context.Context, int, transcriber.RequestSource, func(transcriber.Response)) error {
		panic("boom")
	}}
	bridge := NewRecognitionBridge(rec)
	a := bridge.Start(context.Background(), NewRequestSource(testOptions().SessionConfig, NewChunkQueue(), SourceOptions{}))
	events := collectEvents(t, a)

	if len(events) != 1 || !events[0].Done {
		t.Fatalf("expected only a terminal event, got %+v", events)
	}
	if events[0].Err == nil || !strings.Contains(events[0].Err.Error(), "boom") {
		t.Fatalf("expected panic to surface as error, got %v", events[0].Err)
	}
}

func TestBridgeRetireUnblocksWaitingWorker(t *testing.T) {
	rec := &mockRecognizer{script: func(ctx context.Context, _ int, src transcriber.RequestSource, _ func(transcriber.Response)) error {
		for {
			if _, ok := src.Next(ctx); !ok {
				return ctx.Err()
			}
		}
	}}
	q := NewChunkQueue()
	bridge := NewRecognitionBridge(rec)
	a := bridge.Start(context.Background(), NewRequestSource(testOptions().SessionConfig, q, SourceOptions{PollInterval: 5 * time.Millisecond}))

	waitUntil(t, time.Second, func() bool { return rec.attemptCount() == 1 }, "worker did not start")
	if !a.Retire(time.Second) {
		t.Fatal("expected blocked worker to exit after retire")
	}
}

func TestBridgeWorkerDoesNotWedgeWhenNobodyReads(t *testing.T) {
	rec := &mockRecognizer{script: func(_ context.Context, _ int, _ transcriber.RequestSource, on func(transcriber.Response)) error {
		for i := 0; i < defaultResultBuffer*4; i++ {
			on(transcriber.Response{Transcript: "x"})
		}
		return nil
	}}
	bridge := NewRecognitionBridge(rec)
	a := bridge.Start(context.Background(), NewRequestSource(testOptions().SessionConfig, NewChunkQueue(), SourceOptions{}))

	waitUntil(t, time.Second, func() bool { return rec.attemptCount() == 1 }, "worker did not start")
	if !a.Retire(time.Second) {
		t.Fatal("worker stayed blocked on a full result channel")
	}
}

package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/webhook"
)

func TestSendSessionSummary_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendSessionSummary(context.Background(), webhook.SessionSummaryPayload{ConnectionID: "c-1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendSessionSummary_Success(t *testing.T) {
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sender := NewHTTPSender(server.URL)
	err := sender.SendSessionSummary(context.Background(), webhook.SessionSummaryPayload{
		ConnectionID:    "c-1",
		RemoteAddr:      "10.0.0.1:4000",
		StartedAt:       started,
		EndedAt:         started.Add(10 * time.Minute),
		DurationSeconds: 600,
		StopReason:      "end_of_input",
		RestartCount:    2,
		ResultCount:     31,
		AudioChunks:     1200,
		AudioBytes:      2400000,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got["connection_id"] != "c-1" || got["stop_reason"] != "end_of_input" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if got["restart_count"] != float64(2) || got["duration_seconds"] != float64(600) {
		t.Fatalf("unexpected counters: %v", got)
	}
	if _, ok := got["transcript"]; ok {
		t.Fatal("summary must not carry transcript content")
	}
}

func TestSendSessionSummary_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendSessionSummary(context.Background(), webhook.SessionSummaryPayload{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

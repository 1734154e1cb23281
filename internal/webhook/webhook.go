package webhook

import (
	"context"
	"time"
)

// SessionSummaryPayload is posted once per closed connection.
type SessionSummaryPayload struct {
	ConnectionID    string    `json:"connection_id"`
	RemoteAddr      string    `json:"remote_addr"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int64     `json:"duration_seconds"`
	StopReason      string    `json:"stop_reason"`
	RestartCount    int       `json:"restart_count"`
	ResultCount     int       `json:"result_count"`
	ErrorCount      int       `json:"error_count"`
	AudioChunks     int64     `json:"audio_chunks"`
	AudioBytes      int64     `json:"audio_bytes"`
}

type Sender interface {
	SendSessionSummary(ctx context.Context, payload SessionSummaryPayload) error
}

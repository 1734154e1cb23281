package repository

import "time"

type ConnectionStatus string

const (
	ConnectionStatusRunning   ConnectionStatus = "running"
	ConnectionStatusCompleted ConnectionStatus = "completed"
)

// Connection is the audit record of one client streaming connection. It never
// carries transcript content.
type Connection struct {
	ID           string
	RemoteAddr   string
	StartedAt    time.Time
	EndedAt      *time.Time
	Status       ConnectionStatus
	StopReason   string
	RestartCount int
	ResultCount  int
	ErrorCount   int
	AudioChunks  int64
	AudioBytes   int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

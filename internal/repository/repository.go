package repository

import (
	"context"
	"time"
)

type CreateConnectionInput struct {
	ID         string
	RemoteAddr string
	StartedAt  time.Time
}

type CompleteConnectionInput struct {
	ID           string
	EndedAt      time.Time
	StopReason   string
	RestartCount int
	ResultCount  int
	ErrorCount   int
	AudioChunks  int64
	AudioBytes   int64
}

type Repository interface {
	CreateConnection(ctx context.Context, input CreateConnectionInput) (*Connection, error)
	CompleteConnection(ctx context.Context, input CompleteConnectionInput) error
	GetConnection(ctx context.Context, id string) (*Connection, error)
	// CloseStaleConnections completes records left running by a previous
	// process and returns how many were closed.
	CloseStaleConnections(ctx context.Context, endedAt time.Time, reason string) (int64, error)
}

package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/repository"
)

// NoopRepository is used when no DATABASE_URL is configured. Connections are
// served normally and nothing is persisted.
type NoopRepository struct{}

func NewNoopRepository() *NoopRepository {
	return &NoopRepository{}
}

func (NoopRepository) CreateConnection(_ context.Context, input repository.CreateConnectionInput) (*repository.Connection, error) {
	return &repository.Connection{
		ID:         input.ID,
		RemoteAddr: input.RemoteAddr,
		StartedAt:  input.StartedAt,
		Status:     repository.ConnectionStatusRunning,
	}, nil
}

func (NoopRepository) CompleteConnection(context.Context, repository.CompleteConnectionInput) error {
	return nil
}

func (NoopRepository) GetConnection(context.Context, string) (*repository.Connection, error) {
	return nil, nil
}

func (NoopRepository) CloseStaleConnections(context.Context, time.Time, string) (int64, error) {
	return 0, nil
}

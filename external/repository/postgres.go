package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const connectionColumns = `id, remote_addr, started_at, ended_at, status::text, stop_reason,
	restart_count, result_count, error_count, audio_chunks, audio_bytes, created_at, updated_at`

func (r *PostgresRepository) CreateConnection(ctx context.Context, input repository.CreateConnectionInput) (*repository.Connection, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO connections (id, remote_addr, started_at, status)
		 VALUES ($1, $2, $3, 'running')
		 RETURNING `+connectionColumns,
		input.ID, input.RemoteAddr, input.StartedAt)
	return scanConnection(row)
}

func (r *PostgresRepository) CompleteConnection(ctx context.Context, input repository.CompleteConnectionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE connections SET
			status = 'completed',
			ended_at = $2,
			stop_reason = $3,
			restart_count = $4,
			result_count = $5,
			error_count = $6,
			audio_chunks = $7,
			audio_bytes = $8,
			updated_at = NOW()
		 WHERE id = $1`,
		input.ID, input.EndedAt, input.StopReason, input.RestartCount,
		input.ResultCount, input.ErrorCount, input.AudioChunks, input.AudioBytes)
	return err
}

func (r *PostgresRepository) GetConnection(ctx context.Context, id string) (*repository.Connection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id)
	c, err := scanConnection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *PostgresRepository) CloseStaleConnections(ctx context.Context, endedAt time.Time, reason string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE connections SET status = 'completed', ended_at = $1, stop_reason = $2, updated_at = NOW()
		 WHERE status = 'running'`,
		endedAt, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanConnection(row pgx.Row) (*repository.Connection, error) {
	var c repository.Connection
	var status string
	err := row.Scan(&c.ID, &c.RemoteAddr, &c.StartedAt, &c.EndedAt, &status, &c.StopReason,
		&c.RestartCount, &c.ResultCount, &c.ErrorCount, &c.AudioChunks, &c.AudioBytes,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = repository.ConnectionStatus(status)
	return &c, nil
}

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const (
	databaseInitTimeout = 15 * time.Second
	staleStopReason     = "server_restarted"
)

// Pool owns the pgx pool so the injector can close it on shutdown.
type Pool struct {
	*pgxpool.Pool
}

func (p *Pool) Shutdown() error {
	p.Close()
	return nil
}

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Pool, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		return &Pool{Pool: p}, nil
	})

	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.DatabaseURL == "" {
			slog.Info("DATABASE_URL is empty, connection audit records are disabled")
			return NewNoopRepository(), nil
		}
		pool := do.MustInvoke[*Pool](i)
		repo := NewPostgresRepository(pool.Pool)

		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		closed, err := repo.CloseStaleConnections(ctx, time.Now(), staleStopReason)
		if err != nil {
			return nil, fmt.Errorf("failed to close stale connections: %w", err)
		}
		if closed > 0 {
			slog.Warn("closed connection records left running by a previous process", "count", closed)
		}
		return repo, nil
	})
}

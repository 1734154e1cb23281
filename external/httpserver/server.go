package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Server owns the HTTP listener and every streaming connection it accepted.
type Server struct {
	httpSrv *http.Server
	cancel  context.CancelFunc
	active  *sync.WaitGroup
}

func NewServer(cfg *config.Config, cs ConnectionServer, gatherer prometheus.Gatherer) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	active := &sync.WaitGroup{}
	engine := newRouter(routerDeps{
		cfg:      cfg,
		server:   cs,
		gatherer: gatherer,
		baseCtx:  baseCtx,
		active:   active,
	})
	return &Server{
		httpSrv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           engine,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		cancel: cancel,
		active: active,
	}
}

// Run blocks until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	slog.Info("http server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, stops every live stream and waits for
// them to finalize.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.cancel()
	err := s.httpSrv.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("timed out waiting for streaming connections to finish")
	}
	return err
}

package httpserver

import (
	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/metrics"
	"github.com/foxseedlab/livetranscribe/internal/stream"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		orchestrator := do.MustInvoke[*stream.Orchestrator](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewServer(cfg, orchestrator, m.Registry), nil
	})
}

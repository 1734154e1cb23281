package session

import (
	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/metrics"
	"github.com/foxseedlab/livetranscribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		recognizer := do.MustInvoke[transcriber.Recognizer](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewManager(recognizer, OptionsFromConfig(cfg), m), nil
	})
}

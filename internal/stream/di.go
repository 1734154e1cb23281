package stream

import (
	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/metrics"
	"github.com/foxseedlab/livetranscribe/internal/repository"
	"github.com/foxseedlab/livetranscribe/internal/session"
	"github.com/foxseedlab/livetranscribe/internal/translator"
	"github.com/foxseedlab/livetranscribe/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Orchestrator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*session.Manager](i)
		repo := do.MustInvoke[repository.Repository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		var tr translator.Translator
		if cfg.TranslationEnabled {
			tr = do.MustInvoke[translator.Translator](i)
		}
		return NewOrchestrator(manager, tr, repo, wh, m, OptionsFromConfig(cfg)), nil
	})
}

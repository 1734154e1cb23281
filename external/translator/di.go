package translator

import (
	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/translator"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (translator.Translator, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewChatTranslator(ChatConfig{
			APIKey:         c.TranslationAPIKey,
			BaseURL:        c.TranslationBaseURL,
			Model:          c.TranslationModel,
			TargetLanguage: c.TranslationTargetLanguage,
		})
	})
}

package transcriber

import (
	"context"

	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Recognizer, error) {
		c := do.MustInvoke[*config.Config](i)
		cfg := CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsFile: c.GoogleCloudCredentialsFile,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Location:        c.SpeechLocation,
		}
		client, err := NewSpeechClient(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return NewCloudSpeechRecognizer(client, cfg), nil
	})
}

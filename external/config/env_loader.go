package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string   `env:"ENV" envDefault:"production"`
	Host                       string   `env:"HOST" envDefault:"0.0.0.0"`
	Port                       int      `env:"PORT" envDefault:"8000"`
	CORSOrigins                []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	GoogleCloudProjectID       string   `env:"GOOGLE_CLOUD_PROJECT,required"`
	GoogleCloudCredentialsFile string   `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	GoogleCloudCredentialsJSON string   `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	SpeechLocation             string   `env:"STT_LOCATION" envDefault:"asia-northeast1"`
	SpeechModel                string   `env:"STT_MODEL" envDefault:"chirp_3"`
	SpeechLanguageCodes        []string `env:"STT_LANGUAGE_CODES" envSeparator:"," envDefault:"ko-KR"`
	SpeechSampleRateHertz      int      `env:"STT_SAMPLE_RATE_HERTZ" envDefault:"48000"`
	SpeechChannelCount         int      `env:"STT_CHANNEL_COUNT" envDefault:"1"`
	StreamingLimitMs           int      `env:"STREAMING_LIMIT_MS" envDefault:"240000"`
	MaxRestarts                int      `env:"MAX_RESTARTS" envDefault:"100"`
	RestartPauseMs             int      `env:"RESTART_PAUSE_MS" envDefault:"100"`
	QueuePollMs                int      `env:"QUEUE_POLL_MS" envDefault:"100"`
	QueueIdleLogMs             int      `env:"QUEUE_IDLE_LOG_MS" envDefault:"10000"`
	TranslationEnabled         bool     `env:"TRANSLATION_ENABLED" envDefault:"false"`
	TranslationAPIKey          string   `env:"GOOGLE_API_KEY"`
	TranslationModel           string   `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	TranslationBaseURL         string   `env:"TRANSLATION_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta/openai/"`
	TranslationTargetLanguage  string   `env:"TRANSLATION_TARGET_LANGUAGE" envDefault:"English"`
	TranslationTimeoutMs       int      `env:"TRANSLATION_TIMEOUT_MS" envDefault:"10000"`
	TranslationStream          bool     `env:"TRANSLATION_STREAM" envDefault:"false"`
	DatabaseURL                string   `env:"DATABASE_URL"`
	SessionWebhookURL          string   `env:"SESSION_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env file: %w", err)
		}
		slog.Debug(".env file not found; using process environment only")
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		Host:                       raw.Host,
		Port:                       raw.Port,
		CORSOrigins:                raw.CORSOrigins,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsFile: raw.GoogleCloudCredentialsFile,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		SpeechLocation:             raw.SpeechLocation,
		SpeechModel:                raw.SpeechModel,
		SpeechLanguageCodes:        raw.SpeechLanguageCodes,
		SpeechSampleRateHertz:      raw.SpeechSampleRateHertz,
		SpeechChannelCount:         raw.SpeechChannelCount,
		StreamingLimitMs:           raw.StreamingLimitMs,
		MaxRestarts:                raw.MaxRestarts,
		RestartPauseMs:             raw.RestartPauseMs,
		QueuePollMs:                raw.QueuePollMs,
		QueueIdleLogMs:             raw.QueueIdleLogMs,
		TranslationEnabled:         raw.TranslationEnabled,
		TranslationAPIKey:          raw.TranslationAPIKey,
		TranslationModel:           raw.TranslationModel,
		TranslationBaseURL:         raw.TranslationBaseURL,
		TranslationTargetLanguage:  raw.TranslationTargetLanguage,
		TranslationTimeoutMs:       raw.TranslationTimeoutMs,
		TranslationStream:          raw.TranslationStream,
		DatabaseURL:                raw.DatabaseURL,
		SessionWebhookURL:          raw.SessionWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

type Config struct {
	Env         string
	Host        string
	Port        int
	CORSOrigins []string

	GoogleCloudProjectID       string
	GoogleCloudCredentialsFile string
	GoogleCloudCredentialsJSON string
	SpeechLocation             string
	SpeechModel                string
	SpeechLanguageCodes        []string
	SpeechSampleRateHertz      int
	SpeechChannelCount         int

	StreamingLimitMs int
	MaxRestarts      int
	RestartPauseMs   int
	QueuePollMs      int
	QueueIdleLogMs   int

	TranslationEnabled        bool
	TranslationAPIKey         string
	TranslationModel          string
	TranslationBaseURL        string
	TranslationTargetLanguage string
	TranslationTimeoutMs      int
	TranslationStream         bool

	DatabaseURL       string
	SessionWebhookURL string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if len(c.SpeechLanguageCodes) == 0 {
		return fmt.Errorf("STT_LANGUAGE_CODES must name at least one language")
	}
	if c.SpeechSampleRateHertz <= 0 {
		return fmt.Errorf("STT_SAMPLE_RATE_HERTZ must be positive, got %d", c.SpeechSampleRateHertz)
	}
	if c.SpeechChannelCount <= 0 {
		return fmt.Errorf("STT_CHANNEL_COUNT must be positive, got %d", c.SpeechChannelCount)
	}
	for _, p := range c.positiveDurationChecks() {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("MAX_RESTARTS must not be negative, got %d", c.MaxRestarts)
	}
	if c.TranslationEnabled && c.TranslationAPIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY is required when TRANSLATION_ENABLED=true")
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HOST", value: c.Host},
		{name: "GOOGLE_CLOUD_PROJECT", value: c.GoogleCloudProjectID},
		{name: "STT_LOCATION", value: c.SpeechLocation},
		{name: "STT_MODEL", value: c.SpeechModel},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveDurationChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "STREAMING_LIMIT_MS", value: c.StreamingLimitMs},
		{name: "RESTART_PAUSE_MS", value: c.RestartPauseMs},
		{name: "QUEUE_POLL_MS", value: c.QueuePollMs},
		{name: "QUEUE_IDLE_LOG_MS", value: c.QueueIdleLogMs},
		{name: "TRANSLATION_TIMEOUT_MS", value: c.TranslationTimeoutMs},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) StreamingLimit() time.Duration {
	return time.Duration(c.StreamingLimitMs) * time.Millisecond
}

func (c *Config) RestartPause() time.Duration {
	return time.Duration(c.RestartPauseMs) * time.Millisecond
}

func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.QueuePollMs) * time.Millisecond
}

func (c *Config) QueueIdleLogInterval() time.Duration {
	return time.Duration(c.QueueIdleLogMs) * time.Millisecond
}

func (c *Config) TranslationTimeout() time.Duration {
	return time.Duration(c.TranslationTimeoutMs) * time.Millisecond
}

func (c *Config) IsOriginAllowed(origin string) bool {
	for _, o := range c.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

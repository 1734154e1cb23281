package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	configloader "github.com/foxseedlab/livetranscribe/external/config"
	"github.com/foxseedlab/livetranscribe/external/httpserver"
	repositoryimpl "github.com/foxseedlab/livetranscribe/external/repository"
	transcriberimpl "github.com/foxseedlab/livetranscribe/external/transcriber"
	translatorimpl "github.com/foxseedlab/livetranscribe/external/translator"
	webhookimpl "github.com/foxseedlab/livetranscribe/external/webhook"
	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/metrics"
	"github.com/foxseedlab/livetranscribe/internal/session"
	"github.com/foxseedlab/livetranscribe/internal/stream"
	"github.com/samber/do/v2"
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded",
		"env", cfg.Env,
		"stt_location", cfg.SpeechLocation,
		"stt_model", cfg.SpeechModel,
		"language_codes", cfg.SpeechLanguageCodes,
		"translation_enabled", cfg.TranslationEnabled,
	)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching http server")
	runServer(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	if cfg.TranslationEnabled {
		translatorimpl.RegisterDI(injector)
	}
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	stream.RegisterDI(injector)
	httpserver.RegisterDI(injector)

	return injector
}

func runServer(injector do.Injector) {
	server, err := do.Invoke[*httpserver.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		if err := server.Run(); err != nil {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	if report := injector.Shutdown(); report != nil {
		slog.Info("dependencies shut down", "report", report)
	}
}

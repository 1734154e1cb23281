package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/metrics"
	"github.com/foxseedlab/livetranscribe/internal/repository"
	"github.com/foxseedlab/livetranscribe/internal/session"
	"github.com/foxseedlab/livetranscribe/internal/translator"
	"github.com/foxseedlab/livetranscribe/internal/webhook"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFinalizeTimeout = 5 * time.Second
	ingressChunkLogEvery   = 100
)

// Runner is the recognition side of a connection.
type Runner interface {
	Run(ctx context.Context, connID string, queue *session.ChunkQueue, sink session.Sink) session.Summary
}

type Options struct {
	TranslationTimeout time.Duration
	TranslationStream  bool
	FinalizeTimeout    time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TranslationTimeout: cfg.TranslationTimeout(),
		TranslationStream:  cfg.TranslationStream,
		FinalizeTimeout:    defaultFinalizeTimeout,
	}
}

// Orchestrator runs the ingress and egress activities of each client
// connection and records the connection once it closes.
type Orchestrator struct {
	runner     Runner
	translator translator.Translator
	repo       repository.Repository
	webhook    webhook.Sender
	metrics    *metrics.Metrics
	opts       Options
	now        func() time.Time
}

// NewOrchestrator builds an Orchestrator. tr may be nil when translation is
// disabled.
func NewOrchestrator(runner Runner, tr translator.Translator, repo repository.Repository, wh webhook.Sender, m *metrics.Metrics, opts Options) *Orchestrator {
	if opts.FinalizeTimeout <= 0 {
		opts.FinalizeTimeout = defaultFinalizeTimeout
	}
	return &Orchestrator{
		runner:     runner,
		translator: tr,
		repo:       repo,
		webhook:    wh,
		metrics:    m,
		opts:       opts,
		now:        time.Now,
	}
}

// Serve blocks until the connection is finished and returns why it stopped.
// The connection is always closed on return.
func (o *Orchestrator) Serve(ctx context.Context, connID, remoteAddr string, conn Conn) StopReason {
	startedAt := o.now()
	o.metrics.RecordConnectionOpened()
	slog.Info("client connection accepted", "connection_id", connID, "remote_addr", remoteAddr)
	o.createRecord(connID, remoteAddr, startedAt)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	flag := NewReceiveFlag()
	queue := session.NewChunkQueue()
	sink := newClientSink(connCtx, connID, conn, flag, sinkOptions{
		translator:        o.translator,
		translateTimeout:  o.opts.TranslationTimeout,
		translationStream: o.opts.TranslationStream,
		metrics:           o.metrics,
	})

	go func() {
		select {
		case <-ctx.Done():
			flag.Clear(StopReasonServerShutdown)
		case <-flag.Done():
		}
		queue.Close()
		_ = conn.Close()
	}()

	var summary session.Summary
	g, gctx := errgroup.WithContext(connCtx)
	g.Go(func() error {
		return guard(connID, "ingress", flag, func() error {
			return o.ingress(connID, conn, queue, flag)
		})
	})
	g.Go(func() error {
		return guard(connID, "egress", flag, func() error {
			runCtx, stop := context.WithCancel(gctx)
			defer stop()
			go func() {
				select {
				case <-flag.Done():
					stop()
				case <-runCtx.Done():
				}
			}()
			summary = o.runner.Run(runCtx, connID, queue, sink)
			reason := stopReasonFromSummary(summary)
			if summary.StopReason == session.StopReasonCancelled && ctx.Err() != nil {
				reason = StopReasonServerShutdown
			}
			flag.Clear(reason)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		slog.Error("connection activity failed", "connection_id", connID, "error", err)
	}

	flag.Clear(StopReasonInternalError)
	sink.Close()
	if err := conn.Close(); err != nil {
		slog.Debug("failed to close client connection", "connection_id", connID, "error", err)
	}

	reason := flag.Reason()
	o.finalize(connID, remoteAddr, startedAt, reason, summary)
	return reason
}

func (o *Orchestrator) ingress(connID string, conn Conn, queue *session.ChunkQueue, flag *ReceiveFlag) error {
	var chunks int
	for {
		if !flag.Active() {
			return nil
		}
		frame, err := conn.ReadFrame()
		if err != nil {
			if flag.Clear(StopReasonClientDisconnected) {
				slog.Info("client disconnected", "connection_id", connID, "error", err, "chunks_received", chunks)
			}
			queue.Close()
			return nil
		}
		if !frame.Binary {
			slog.Debug("ignoring non-binary frame", "connection_id", connID, "bytes", len(frame.Data))
			continue
		}
		if len(frame.Data) == 0 {
			slog.Info("end of input received", "connection_id", connID, "chunks_received", chunks)
			queue.Close()
			flag.Clear(StopReasonEndOfInput)
			return nil
		}
		if err := queue.Push(frame.Data); err != nil {
			return nil
		}
		chunks++
		o.metrics.RecordAudioChunk(len(frame.Data), queue.Len())
		if chunks == 1 || chunks%ingressChunkLogEvery == 0 {
			slog.Debug("audio frames received", "connection_id", connID, "chunks_received", chunks, "chunk_bytes", len(frame.Data))
		}
	}
}

// guard converts a panic in an activity into an error and clears the flag so
// the other activity stops.
func guard(connID, activity string, flag *ReceiveFlag, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("connection activity panicked", "connection_id", connID, "activity", activity, "panic", r)
			flag.Clear(StopReasonInternalError)
			err = fmt.Errorf("%s activity panic: %v", activity, r)
		}
	}()
	return fn()
}

func stopReasonFromSummary(s session.Summary) StopReason {
	switch s.StopReason {
	case session.StopReasonEndOfInput:
		return StopReasonEndOfInput
	case session.StopReasonRestartBudgetExhausted:
		return StopReasonRestartBudgetExhausted
	case session.StopReasonBackendUnavailable:
		return StopReasonBackendUnavailable
	case session.StopReasonClientWriteFailed:
		return StopReasonClientWriteFailed
	case session.StopReasonCancelled:
		return StopReasonClientDisconnected
	default:
		return StopReasonInternalError
	}
}

func (o *Orchestrator) createRecord(connID, remoteAddr string, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.FinalizeTimeout)
	defer cancel()
	if _, err := o.repo.CreateConnection(ctx, repository.CreateConnectionInput{
		ID:         connID,
		RemoteAddr: remoteAddr,
		StartedAt:  startedAt,
	}); err != nil {
		slog.Error("failed to create connection record", "connection_id", connID, "error", err)
	}
}

func (o *Orchestrator) finalize(connID, remoteAddr string, startedAt time.Time, reason StopReason, summary session.Summary) {
	endedAt := o.now()
	duration := endedAt.Sub(startedAt)
	o.metrics.RecordConnectionClosed(string(reason), duration.Seconds())
	slog.Info("client connection closed",
		"connection_id", connID,
		"stop_reason", string(reason),
		"restart_count", summary.RestartCount,
		"results", summary.Results,
		"error_events", summary.ErrorEvents,
		"duration", duration)

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.FinalizeTimeout)
	defer cancel()

	if err := o.repo.CompleteConnection(ctx, repository.CompleteConnectionInput{
		ID:           connID,
		EndedAt:      endedAt,
		StopReason:   string(reason),
		RestartCount: summary.RestartCount,
		ResultCount:  summary.Results,
		ErrorCount:   summary.ErrorEvents,
		AudioChunks:  summary.AudioChunks,
		AudioBytes:   summary.AudioBytes,
	}); err != nil {
		slog.Error("failed to complete connection record", "connection_id", connID, "error", err)
	}

	if err := o.webhook.SendSessionSummary(ctx, webhook.SessionSummaryPayload{
		ConnectionID:    connID,
		RemoteAddr:      remoteAddr,
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		DurationSeconds: int64(duration.Seconds()),
		StopReason:      string(reason),
		RestartCount:    summary.RestartCount,
		ResultCount:     summary.Results,
		ErrorCount:      summary.ErrorEvents,
		AudioChunks:     summary.AudioChunks,
		AudioBytes:      summary.AudioBytes,
	}); err != nil {
		slog.Error("failed to send session summary webhook", "connection_id", connID, "error", err)
	}
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/config"
	"github.com/foxseedlab/livetranscribe/internal/metrics"
	"github.com/foxseedlab/livetranscribe/internal/transcriber"
)

const defaultRetireGrace = 2 * time.Second

type StopReason string

const (
	StopReasonEndOfInput             StopReason = "end_of_input"
	StopReasonCancelled              StopReason = "cancelled"
	StopReasonRestartBudgetExhausted StopReason = "restart_budget_exhausted"
	StopReasonBackendUnavailable     StopReason = "backend_unavailable"
	StopReasonClientWriteFailed      StopReason = "client_write_failed"
)

const (
	restartReasonStreamingLimit = "streaming_limit"
	restartReasonDurationLimit  = "duration_limit"
	restartReasonStreamClosed   = "stream_closed"
	restartReasonBackendError   = "backend_error"
)

// Sink receives everything a connection emits to its client.
type Sink interface {
	SendTranscript(ctx context.Context, result NormalizedResult) error
	SendError(ctx context.Context, event ErrorEvent) error
}

type Options struct {
	SessionConfig  transcriber.SessionConfig
	StreamingLimit time.Duration
	MaxRestarts    int
	RestartPause   time.Duration
	PollInterval   time.Duration
	IdleLogAfter   time.Duration
	RetireGrace    time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SessionConfig: transcriber.SessionConfig{
			SampleRateHertz:     cfg.SpeechSampleRateHertz,
			ChannelCount:        cfg.SpeechChannelCount,
			Encoding:            transcriber.AudioEncodingLinear16,
			LanguageCodes:       cfg.SpeechLanguageCodes,
			Model:               cfg.SpeechModel,
			InterimResults:      true,
			VoiceActivityEvents: true,
		},
		StreamingLimit: cfg.StreamingLimit(),
		MaxRestarts:    cfg.MaxRestarts,
		RestartPause:   cfg.RestartPause(),
		PollInterval:   cfg.QueuePollInterval(),
		IdleLogAfter:   cfg.QueueIdleLogInterval(),
		RetireGrace:    defaultRetireGrace,
	}
}

// Summary describes how a connection's recognition run ended.
type Summary struct {
	State        State
	StopReason   StopReason
	RestartCount int
	Results      int
	ErrorEvents  int
	AudioChunks  int64
	AudioBytes   int64
	Err          error
}

// Manager owns the restart policy. One Manager serves every connection; each
// Run call keeps its own state.
type Manager struct {
	bridge  *RecognitionBridge
	opts    Options
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewManager(recognizer transcriber.Recognizer, opts Options, m *metrics.Metrics) *Manager {
	if opts.RetireGrace <= 0 {
		opts.RetireGrace = defaultRetireGrace
	}
	return &Manager{
		bridge:  NewRecognitionBridge(recognizer),
		opts:    opts,
		metrics: m,
		now:     time.Now,
	}
}

// Run drives recognition attempts for one connection until input ends, ctx is
// cancelled, or a fatal condition is reached. Audio is taken from queue and
// every client-visible event goes to sink.
func (m *Manager) Run(ctx context.Context, connID string, queue *ChunkQueue, sink Sink) Summary {
	r := &run{
		m:      m,
		connID: connID,
		queue:  queue,
		sink:   sink,
		state:  StateStarting,
	}
	return r.loop(ctx)
}

type run struct {
	m      *Manager
	connID string
	queue  *ChunkQueue
	sink   Sink

	state   State
	sess    *Session
	summary Summary
}

type outcomeKind int

const (
	outcomeRestart outcomeKind = iota
	outcomeTerminate
)

type outcome struct {
	kind   outcomeKind
	reason string
	stop   StopReason
	err    error
}

func restartWith(reason string) outcome {
	return outcome{kind: outcomeRestart, reason: reason}
}

func terminateWith(stop StopReason, err error) outcome {
	return outcome{kind: outcomeTerminate, stop: stop, err: err}
}

func (r *run) loop(ctx context.Context) Summary {
	r.sess = newSession(0, r.m.now())
	for {
		attempt := r.startAttempt(ctx)
		r.setState(StateStreaming)

		out := r.consume(ctx, attempt)
		r.retire(attempt)

		if out.kind == outcomeTerminate {
			return r.terminate(out.stop, out.err)
		}
		if next := r.restart(ctx, out.reason); next.kind == outcomeTerminate {
			return r.terminate(next.stop, next.err)
		}
	}
}

func (r *run) startAttempt(ctx context.Context) *Attempt {
	src := NewRequestSource(r.m.opts.SessionConfig, r.queue, SourceOptions{
		PollInterval: r.m.opts.PollInterval,
		IdleLogAfter: r.m.opts.IdleLogAfter,
		Attempt:      r.sess.RestartCount,
	})
	r.m.metrics.RecordAttemptStarted()
	slog.Info("recognition attempt started",
		"connection_id", r.connID,
		"restart_count", r.sess.RestartCount,
		"queued_chunks", r.queue.Len())
	return r.m.bridge.Start(ctx, src)
}

func (r *run) retire(attempt *Attempt) {
	if !attempt.Retire(r.m.opts.RetireGrace) {
		slog.Warn("recognition worker did not exit within grace period",
			"connection_id", r.connID,
			"restart_count", r.sess.RestartCount,
			"grace", r.m.opts.RetireGrace)
	}
	chunks, bytes := attempt.Source().Stats()
	r.summary.AudioChunks += chunks
	r.summary.AudioBytes += bytes
}

func (r *run) consume(ctx context.Context, attempt *Attempt) outcome {
	for {
		select {
		case <-ctx.Done():
			return terminateWith(StopReasonCancelled, nil)
		case ev, ok := <-attempt.Events:
			if !ok {
				return r.attemptEnded(ctx, attempt, ctx.Err())
			}
			if ev.Done {
				return r.attemptEnded(ctx, attempt, ev.Err)
			}
			if ctx.Err() != nil {
				return terminateWith(StopReasonCancelled, nil)
			}

			now := r.m.now()
			if elapsed := r.sess.Elapsed(now); elapsed > r.m.opts.StreamingLimit {
				slog.Info("streaming limit reached; restarting recognition",
					"connection_id", r.connID,
					"restart_count", r.sess.RestartCount,
					"elapsed", elapsed)
				return restartWith(restartReasonStreamingLimit)
			}

			if ev.Response.Err != nil {
				slog.Warn("recognition backend reported an error mid-stream",
					"connection_id", r.connID,
					"restart_count", r.sess.RestartCount,
					"error", ev.Response.Err)
				if err := r.reportError(ctx, ev.Response.Err, errorClassReportable); err != nil {
					return terminateWith(StopReasonClientWriteFailed, err)
				}
				continue
			}

			if err := r.emit(ctx, ev.Response, now); err != nil {
				return terminateWith(StopReasonClientWriteFailed, err)
			}
		}
	}
}

func (r *run) attemptEnded(ctx context.Context, attempt *Attempt, err error) outcome {
	if ctx.Err() != nil {
		return terminateWith(StopReasonCancelled, nil)
	}
	inputDone := attempt.Source().Exhausted() || (r.queue.Closed() && r.queue.Len() == 0)
	class := classifyBackendError(err)

	switch class {
	case errorClassNone, errorClassStreamEnded:
		if inputDone {
			return terminateWith(StopReasonEndOfInput, nil)
		}
		slog.Info("recognition stream closed before end of input; restarting",
			"connection_id", r.connID,
			"restart_count", r.sess.RestartCount,
			"error", err)
		return restartWith(restartReasonStreamClosed)

	case errorClassDurationLimit:
		slog.Info("backend duration limit reached; restarting recognition",
			"connection_id", r.connID,
			"restart_count", r.sess.RestartCount,
			"error", err)
		if inputDone {
			return terminateWith(StopReasonEndOfInput, nil)
		}
		return restartWith(restartReasonDurationLimit)

	case errorClassFatal:
		slog.Error("recognition backend unavailable",
			"connection_id", r.connID,
			"restart_count", r.sess.RestartCount,
			"error", err)
		if werr := r.reportError(ctx, err, class); werr != nil {
			return terminateWith(StopReasonClientWriteFailed, werr)
		}
		return terminateWith(StopReasonBackendUnavailable, err)

	default:
		if inputDone {
			// Audio ended while the backend was still decoding; nothing left to retry.
			slog.Warn("recognition backend error after end of input",
				"connection_id", r.connID,
				"restart_count", r.sess.RestartCount,
				"error", err)
			return terminateWith(StopReasonEndOfInput, nil)
		}
		slog.Warn("unrecognized recognition backend error; restarting",
			"connection_id", r.connID,
			"restart_count", r.sess.RestartCount,
			"error", err)
		if werr := r.reportError(ctx, err, class); werr != nil {
			return terminateWith(StopReasonClientWriteFailed, werr)
		}
		return restartWith(restartReasonBackendError)
	}
}

func (r *run) restart(ctx context.Context, reason string) outcome {
	r.setState(StateRestarting)

	next := r.sess.RestartCount + 1
	if next > r.m.opts.MaxRestarts {
		err := fmt.Errorf("restart budget of %d exhausted", r.m.opts.MaxRestarts)
		slog.Error("recognition restart budget exhausted",
			"connection_id", r.connID,
			"restart_count", r.sess.RestartCount,
			"max_restarts", r.m.opts.MaxRestarts)
		if werr := r.reportError(ctx, err, errorClassFatal); werr != nil {
			return terminateWith(StopReasonClientWriteFailed, werr)
		}
		return terminateWith(StopReasonRestartBudgetExhausted, err)
	}

	if pause := r.m.opts.RestartPause; pause > 0 {
		timer := time.NewTimer(pause)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return terminateWith(StopReasonCancelled, nil)
		}
	}

	r.sess = newSession(next, r.m.now())
	r.summary.RestartCount = next
	r.m.metrics.RecordRestart(reason)
	slog.Info("recognition session restarted",
		"connection_id", r.connID,
		"restart_count", next,
		"reason", reason)
	return outcome{kind: outcomeRestart}
}

func (r *run) emit(ctx context.Context, resp transcriber.Response, now time.Time) error {
	result := Normalize(resp, r.sess, now, r.m.opts.StreamingLimit)
	r.sess.LastResultWasFinal = resp.IsFinal
	if err := r.sink.SendTranscript(ctx, result); err != nil {
		return fmt.Errorf("failed to send transcript: %w", err)
	}
	r.summary.Results++
	r.m.metrics.RecordResult(resp.IsFinal)
	return nil
}

func (r *run) reportError(ctx context.Context, cause error, class errorClass) error {
	event := ErrorEvent{Message: cause.Error(), Timestamp: r.m.now().UnixMilli()}
	if err := r.sink.SendError(ctx, event); err != nil {
		return fmt.Errorf("failed to send error event: %w", err)
	}
	r.summary.ErrorEvents++
	r.m.metrics.RecordErrorEvent(class.String())
	return nil
}

func (r *run) setState(s State) {
	if r.state == s {
		return
	}
	slog.Debug("session state changed",
		"connection_id", r.connID,
		"from", r.state.String(),
		"to", s.String())
	r.state = s
}

func (r *run) terminate(stop StopReason, err error) Summary {
	r.setState(StateTerminated)
	r.summary.State = StateTerminated
	r.summary.StopReason = stop
	r.summary.Err = err
	slog.Info("recognition run terminated",
		"connection_id", r.connID,
		"stop_reason", string(stop),
		"restart_count", r.summary.RestartCount,
		"results", r.summary.Results,
		"error_events", r.summary.ErrorEvents)
	return r.summary
}

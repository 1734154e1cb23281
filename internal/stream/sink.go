package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/metrics"
	"github.com/foxseedlab/livetranscribe/internal/session"
	"github.com/foxseedlab/livetranscribe/internal/translator"
)

// clientSink writes session output to the client and fans finalized
// transcripts out to the translator.
type clientSink struct {
	connID     string
	conn       Conn
	flag       *ReceiveFlag
	translator translator.Translator
	timeout    time.Duration
	streaming  bool
	metrics    *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type sinkOptions struct {
	translator        translator.Translator
	translateTimeout  time.Duration
	translationStream bool
	metrics           *metrics.Metrics
}

func newClientSink(ctx context.Context, connID string, conn Conn, flag *ReceiveFlag, opts sinkOptions) *clientSink {
	sinkCtx, cancel := context.WithCancel(ctx)
	return &clientSink{
		connID:     connID,
		conn:       conn,
		flag:       flag,
		translator: opts.translator,
		timeout:    opts.translateTimeout,
		streaming:  opts.translationStream,
		metrics:    opts.metrics,
		ctx:        sinkCtx,
		cancel:     cancel,
	}
}

func (s *clientSink) SendTranscript(_ context.Context, result session.NormalizedResult) error {
	if !s.flag.Active() {
		return ErrConnectionStopped
	}
	if err := s.conn.WriteJSON(newTranscriptMessage(result)); err != nil {
		return fmt.Errorf("failed to write transcript message: %w", err)
	}
	if result.BackendIsFinal && s.translator != nil && strings.TrimSpace(result.Transcript) != "" {
		s.translate(result)
	}
	return nil
}

func (s *clientSink) SendError(_ context.Context, event session.ErrorEvent) error {
	if !s.flag.Active() {
		return ErrConnectionStopped
	}
	if err := s.conn.WriteJSON(newErrorMessage(event)); err != nil {
		return fmt.Errorf("failed to write error message: %w", err)
	}
	return nil
}

func (s *clientSink) translate(result session.NormalizedResult) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		var ok bool
		if s.streaming {
			ok = s.translateStream(result)
		} else {
			ok = s.translateOnce(result)
		}
		if !ok {
			s.metrics.RecordTranslation("none", 0)
			return
		}
		s.metrics.RecordTranslation("ok", time.Since(start).Seconds())
	}()
}

func (s *clientSink) translateOnce(result session.NormalizedResult) bool {
	text, ok := s.translator.Translate(s.ctx, result.Transcript, s.timeout)
	if !ok {
		slog.Debug("translation unavailable", "connection_id", s.connID, "timestamp", result.Timestamp)
		return false
	}
	s.write(newTranslationMessage(result.Transcript, text, result.Timestamp, false))
	return true
}

func (s *clientSink) translateStream(result session.NormalizedResult) bool {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	fragments, err := s.translator.TranslateStream(ctx, result.Transcript)
	if err != nil {
		slog.Debug("translation stream failed to start", "connection_id", s.connID, "error", err)
		return false
	}
	var b strings.Builder
	for fragment := range fragments {
		b.WriteString(fragment)
		s.write(newTranslationMessage(result.Transcript, b.String(), result.Timestamp, true))
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		slog.Debug("translation stream timed out", "connection_id", s.connID, "timeout", s.timeout)
		return false
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return false
	}
	s.write(newTranslationMessage(result.Transcript, text, result.Timestamp, false))
	return true
}

func (s *clientSink) write(msg TranslationMessage) {
	if !s.flag.Active() {
		return
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		slog.Debug("failed to write translation message", "connection_id", s.connID, "error", err)
	}
}

// Close cancels outstanding translations and waits for them.
func (s *clientSink) Close() {
	s.cancel()
	s.wg.Wait()
}

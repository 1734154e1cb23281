package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/transcriber"
)

const sourceChunkLogEvery = 20

// RequestSource yields the session configuration first, then audio drained
// from the shared queue until the sentinel is popped or Stop is called.
// Next must be called from a single goroutine.
type RequestSource struct {
	cfg          transcriber.SessionConfig
	queue        *ChunkQueue
	pollInterval time.Duration
	idleLogAfter time.Duration
	onIdle       func(idle time.Duration)
	attempt      int

	sentConfig atomic.Bool
	exhausted  atomic.Bool
	stopped    atomic.Bool
	chunks     atomic.Int64
	bytes      atomic.Int64
}

type SourceOptions struct {
	PollInterval time.Duration
	IdleLogAfter time.Duration
	// OnIdle is a liveness hook called each time IdleLogAfter elapses
	// without audio. It is diagnostic only.
	OnIdle  func(idle time.Duration)
	Attempt int
}

func NewRequestSource(cfg transcriber.SessionConfig, queue *ChunkQueue, opts SourceOptions) *RequestSource {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &RequestSource{
		cfg:          cfg,
		queue:        queue,
		pollInterval: poll,
		idleLogAfter: opts.IdleLogAfter,
		onIdle:       opts.OnIdle,
		attempt:      opts.Attempt,
	}
}

func (s *RequestSource) Next(ctx context.Context) (transcriber.Request, bool) {
	if s.sentConfig.CompareAndSwap(false, true) {
		cfg := s.cfg
		slog.Debug("sending recognition config", "attempt", s.attempt)
		return transcriber.Request{Config: &cfg}, true
	}
	if s.exhausted.Load() {
		return transcriber.Request{}, false
	}

	var idle time.Duration
	for {
		if s.stopped.Load() || ctx.Err() != nil {
			return transcriber.Request{}, false
		}
		chunk, status := s.queue.Pop(ctx, s.pollInterval)
		switch status {
		case PopClosed:
			s.exhausted.Store(true)
			slog.Info("end of audio stream", "attempt", s.attempt, "chunks_sent", s.chunks.Load(), "bytes_sent", s.bytes.Load())
			return transcriber.Request{}, false
		case PopChunk:
			if s.stopped.Load() || ctx.Err() != nil {
				s.queue.Requeue(chunk)
				return transcriber.Request{}, false
			}
			n := s.chunks.Add(1)
			s.bytes.Add(int64(len(chunk)))
			if n%sourceChunkLogEvery == 0 {
				slog.Debug("audio chunks forwarded to backend", "attempt", s.attempt, "chunks_sent", n)
			}
			return transcriber.Request{Audio: chunk}, true
		case PopEmpty:
			idle += s.pollInterval
			if s.idleLogAfter > 0 && idle%s.idleLogAfter < s.pollInterval {
				slog.Debug("audio queue idle; waiting for audio", "attempt", s.attempt, "idle", idle)
				if s.onIdle != nil {
					s.onIdle(idle)
				}
			}
		}
	}
}

// Requeue returns a chunk that was handed out but never reached the backend
// to the head of the queue.
func (s *RequestSource) Requeue(audio []byte) {
	if len(audio) == 0 {
		return
	}
	s.chunks.Add(-1)
	s.bytes.Add(-int64(len(audio)))
	s.queue.Requeue(audio)
}

// Stop makes the source finish without popping further chunks.
func (s *RequestSource) Stop() {
	s.stopped.Store(true)
}

// Exhausted reports whether the sentinel was observed.
func (s *RequestSource) Exhausted() bool {
	return s.exhausted.Load()
}

func (s *RequestSource) Stats() (chunks, bytes int64) {
	return s.chunks.Load(), s.bytes.Load()
}

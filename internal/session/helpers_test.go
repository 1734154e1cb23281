package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/transcriber"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type attemptFunc func(ctx context.Context, attempt int, src transcriber.RequestSource, onResponse func(transcriber.Response)) error

// mockRecognizer runs a scripted function per attempt and records every audio
// chunk it pulled, tagged with the attempt it was delivered to.
type mockRecognizer struct {
	mu       sync.Mutex
	attempts int
	configs  int
	chunks   []deliveredChunk
	script   attemptFunc
}

type deliveredChunk struct {
	attempt int
	audio   string
}

func (m *mockRecognizer) Recognize(ctx context.Context, src transcriber.RequestSource, onResponse func(transcriber.Response)) error {
	m.mu.Lock()
	attempt := m.attempts
	m.attempts++
	m.mu.Unlock()
	return m.script(ctx, attempt, &recordingSource{inner: src, rec: m, attempt: attempt}, onResponse)
}

func (m *mockRecognizer) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *mockRecognizer) delivered() []deliveredChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]deliveredChunk(nil), m.chunks...)
}

type recordingSource struct {
	inner   transcriber.RequestSource
	rec     *mockRecognizer
	attempt int
}

func (s *recordingSource) Next(ctx context.Context) (transcriber.Request, bool) {
	req, ok := s.inner.Next(ctx)
	if !ok {
		return req, false
	}
	s.rec.mu.Lock()
	if req.IsConfig() {
		s.rec.configs++
	} else {
		s.rec.chunks = append(s.rec.chunks, deliveredChunk{attempt: s.attempt, audio: string(req.Audio)})
	}
	s.rec.mu.Unlock()
	return req, true
}

func (s *recordingSource) Requeue(audio []byte) {
	s.rec.mu.Lock()
	for i := len(s.rec.chunks) - 1; i >= 0; i-- {
		if s.rec.chunks[i].audio == string(audio) {
			s.rec.chunks = append(s.rec.chunks[:i], s.rec.chunks[i+1:]...)
			break
		}
	}
	s.rec.mu.Unlock()
	s.inner.Requeue(audio)
}

// drainAndEcho pulls every request and answers each audio chunk with one
// response carrying the chunk as transcript.
func drainAndEcho(clock *fakeClock, step time.Duration) func(ctx context.Context, src transcriber.RequestSource, onResponse func(transcriber.Response)) error {
	return func(ctx context.Context, src transcriber.RequestSource, onResponse func(transcriber.Response)) error {
		for {
			req, ok := src.Next(ctx)
			if !ok {
				return ctx.Err()
			}
			if req.IsConfig() {
				continue
			}
			clock.Advance(step)
			onResponse(transcriber.Response{Transcript: string(req.Audio), IsFinal: true, Confidence: 0.9})
		}
	}
}

type recordingSink struct {
	mu          sync.Mutex
	results     []NormalizedResult
	errorEvents []ErrorEvent
	failWith    error
}

func (s *recordingSink) SendTranscript(_ context.Context, result NormalizedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.results = append(s.results, result)
	return nil
}

func (s *recordingSink) SendError(_ context.Context, event ErrorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.errorEvents = append(s.errorEvents, event)
	return nil
}

func (s *recordingSink) snapshot() ([]NormalizedResult, []ErrorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]NormalizedResult(nil), s.results...), append([]ErrorEvent(nil), s.errorEvents...)
}

var errSinkClosed = errors.New("sink closed")

func testOptions() Options {
	return Options{
		SessionConfig: transcriber.SessionConfig{
			SampleRateHertz: 16000,
			ChannelCount:    1,
			Encoding:        transcriber.AudioEncodingLinear16,
			LanguageCodes:   []string{"ko-KR"},
			Model:           "chirp_3",
			InterimResults:  true,
		},
		StreamingLimit: 4 * time.Minute,
		MaxRestarts:    5,
		RestartPause:   time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		RetireGrace:    time.Second,
	}
}

func newTestManager(rec transcriber.Recognizer, opts Options, clock *fakeClock) *Manager {
	m := NewManager(rec, opts, nil)
	m.now = clock.Now
	return m
}

func queueWith(chunks ...string) *ChunkQueue {
	q := NewChunkQueue()
	for _, c := range chunks {
		_ = q.Push([]byte(c))
	}
	return q
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}

package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/repository"
	"github.com/foxseedlab/livetranscribe/internal/session"
	"github.com/foxseedlab/livetranscribe/internal/translator"
	"github.com/foxseedlab/livetranscribe/internal/webhook"
)

var errConnClosed = errors.New("use of closed network connection")

type mockConn struct {
	frames    chan Frame
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	written  []any
	writeErr error
}

func newMockConn() *mockConn {
	return &mockConn{frames: make(chan Frame, 16), closed: make(chan struct{})}
}

func (c *mockConn) ReadFrame() (Frame, error) {
	select {
	case f, ok := <-c.frames:
		if !ok {
			return Frame{}, io.EOF
		}
		return f, nil
	case <-c.closed:
		return Frame{}, errConnClosed
	}
}

func (c *mockConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v)
	return nil
}

func (c *mockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *mockConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *mockConn) messages() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.written...)
}

func (c *mockConn) sendAudio(data string) {
	c.frames <- Frame{Binary: true, Data: []byte(data)}
}

func (c *mockConn) sendEndOfInput() {
	c.frames <- Frame{Binary: true, Data: []byte{}}
}

// runnerFunc adapts a function to Runner.
type runnerFunc func(ctx context.Context, connID string, queue *session.ChunkQueue, sink session.Sink) session.Summary

func (f runnerFunc) Run(ctx context.Context, connID string, queue *session.ChunkQueue, sink session.Sink) session.Summary {
	return f(ctx, connID, queue, sink)
}

// collectingRunner drains the queue until the sentinel, ignoring cancellation
// so tests can see every chunk ingress pushed.
type collectingRunner struct {
	mu     sync.Mutex
	chunks []string
}

func (r *collectingRunner) Run(_ context.Context, _ string, queue *session.ChunkQueue, _ session.Sink) session.Summary {
	for {
		chunk, status := queue.Pop(context.Background(), 10*time.Millisecond)
		switch status {
		case session.PopClosed:
			return session.Summary{State: session.StateTerminated, StopReason: session.StopReasonEndOfInput}
		case session.PopChunk:
			r.mu.Lock()
			r.chunks = append(r.chunks, string(chunk))
			r.mu.Unlock()
		}
	}
}

func (r *collectingRunner) collected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.chunks...)
}

type mockRepository struct {
	mu        sync.Mutex
	created   []repository.CreateConnectionInput
	completed []repository.CompleteConnectionInput
}

func (m *mockRepository) CreateConnection(_ context.Context, input repository.CreateConnectionInput) (*repository.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, input)
	return &repository.Connection{ID: input.ID, RemoteAddr: input.RemoteAddr, StartedAt: input.StartedAt, Status: repository.ConnectionStatusRunning}, nil
}

func (m *mockRepository) CompleteConnection(_ context.Context, input repository.CompleteConnectionInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, input)
	return nil
}

func (m *mockRepository) GetConnection(_ context.Context, _ string) (*repository.Connection, error) {
	return nil, nil
}

func (m *mockRepository) CloseStaleConnections(_ context.Context, _ time.Time, _ string) (int64, error) {
	return 0, nil
}

type mockWebhookSender struct {
	mu       sync.Mutex
	payloads []webhook.SessionSummaryPayload
}

func (m *mockWebhookSender) SendSessionSummary(_ context.Context, payload webhook.SessionSummaryPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return nil
}

type mockTranslator struct {
	mu        sync.Mutex
	calls     []string
	result    string
	ok        bool
	fragments []string
}

func (m *mockTranslator) Translate(_ context.Context, text string, _ time.Duration) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	return m.result, m.ok
}

func (m *mockTranslator) TranslateStream(_ context.Context, text string) (<-chan string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	fragments := append([]string(nil), m.fragments...)
	m.mu.Unlock()

	ch := make(chan string, len(fragments))
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
	return ch, nil
}

func (m *mockTranslator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestOrchestrator(runner Runner, tr *mockTranslator) (*Orchestrator, *mockRepository, *mockWebhookSender) {
	repo := &mockRepository{}
	wh := &mockWebhookSender{}
	opts := Options{TranslationTimeout: time.Second, FinalizeTimeout: time.Second}
	var t translator.Translator
	if tr != nil {
		t = tr
	}
	return NewOrchestrator(runner, t, repo, wh, nil, opts), repo, wh
}

func serveAsync(ctx context.Context, o *Orchestrator, conn Conn) <-chan StopReason {
	done := make(chan StopReason, 1)
	go func() {
		done <- o.Serve(ctx, "conn-1", "127.0.0.1:5555", conn)
	}()
	return done
}

func waitReason(t *testing.T, done <-chan StopReason) StopReason {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("connection was not released")
		return ""
	}
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

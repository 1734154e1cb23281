package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/transcriber"
)

const defaultResultBuffer = 64

// BridgeEvent is one item on the result queue. Done marks the terminal
// sentinel; Err then carries the backend error, if any.
type BridgeEvent struct {
	Response transcriber.Response
	Done     bool
	Err      error
}

// RecognitionBridge runs the blocking recognizer call on its own goroutine and
// forwards every response, in order, to a channel the caller selects on.
type RecognitionBridge struct {
	recognizer transcriber.Recognizer
	buffer     int
}

func NewRecognitionBridge(recognizer transcriber.Recognizer) *RecognitionBridge {
	return &RecognitionBridge{recognizer: recognizer, buffer: defaultResultBuffer}
}

// Attempt is one live recognition worker.
type Attempt struct {
	Events <-chan BridgeEvent
	source *RequestSource
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the worker. The Events channel always ends with a Done event
// unless the attempt is retired first; it is closed when the worker exits.
func (b *RecognitionBridge) Start(ctx context.Context, src *RequestSource) *Attempt {
	attemptCtx, cancel := context.WithCancel(ctx)
	events := make(chan BridgeEvent, b.buffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(events)

		err := b.recognize(attemptCtx, src, func(resp transcriber.Response) {
			select {
			case events <- BridgeEvent{Response: resp}:
			case <-attemptCtx.Done():
			}
		})
		select {
		case events <- BridgeEvent{Done: true, Err: err}:
		case <-attemptCtx.Done():
		}
	}()

	return &Attempt{Events: events, source: src, cancel: cancel, done: done}
}

func (b *RecognitionBridge) recognize(ctx context.Context, src *RequestSource, onResponse func(transcriber.Response)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recognition worker panicked", "panic", r)
			err = fmt.Errorf("recognition worker panic: %v", r)
		}
	}()
	return b.recognizer.Recognize(ctx, src, onResponse)
}

// Retire stops the request source, cancels the backend call and waits up to
// grace for the worker to exit. It reports whether the worker exited.
func (a *Attempt) Retire(grace time.Duration) bool {
	a.source.Stop()
	a.cancel()
	if grace <= 0 {
		<-a.done
		return true
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-a.done:
		return true
	case <-timer.C:
		return false
	}
}

func (a *Attempt) Source() *RequestSource {
	return a.source
}

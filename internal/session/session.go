package session

import (
	"math"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/transcriber"
)

type State int

const (
	StateStarting State = iota
	StateStreaming
	StateRestarting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateStreaming:
		return "STREAMING"
	case StateRestarting:
		return "RESTARTING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Session is one bounded-lifetime recognition attempt. A new one is created
// on every restart with the connection's running restart count.
type Session struct {
	StartTime          time.Time
	RestartCount       int
	LastResultWasFinal bool
}

func newSession(restartCount int, now time.Time) *Session {
	return &Session{StartTime: now, RestartCount: restartCount}
}

func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// NormalizedResult is the transcript record handed to the client sink.
type NormalizedResult struct {
	Transcript string
	// IsFinal is always false on the wire; BackendIsFinal keeps the value the
	// recognizer reported.
	IsFinal        bool
	Timestamp      int64
	Confidence     *float64
	BackendIsFinal bool
}

type ErrorEvent struct {
	Message   string
	Timestamp int64
}

// Normalize maps a backend response to the client shape. The timestamp is the
// elapsed time in the current session plus one ceiling per prior restart, in
// milliseconds.
func Normalize(resp transcriber.Response, sess *Session, now time.Time, ceiling time.Duration) NormalizedResult {
	corrected := sess.Elapsed(now).Milliseconds() + int64(sess.RestartCount)*ceiling.Milliseconds()
	var confidence *float64
	if resp.Confidence != 0 {
		c := math.Round(float64(resp.Confidence)*1e6) / 1e6
		confidence = &c
	}
	return NormalizedResult{
		Transcript:     resp.Transcript,
		IsFinal:        false,
		Timestamp:      corrected,
		Confidence:     confidence,
		BackendIsFinal: resp.IsFinal,
	}
}

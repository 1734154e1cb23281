package transcriber

import (
	"context"
	"errors"
)

// ErrBackendUnavailable marks failures after which the recognition backend
// cannot be used for the rest of the connection.
var ErrBackendUnavailable = errors.New("recognition backend unavailable")

type AudioEncoding string

const AudioEncodingLinear16 AudioEncoding = "LINEAR16"

// SessionConfig is built once per recognition attempt and never mutated.
type SessionConfig struct {
	SampleRateHertz     int
	ChannelCount        int
	Encoding            AudioEncoding
	LanguageCodes       []string
	Model               string
	InterimResults      bool
	VoiceActivityEvents bool
}

// Request is either the leading configuration record or an audio record.
type Request struct {
	Config *SessionConfig
	Audio  []byte
}

func (r Request) IsConfig() bool {
	return r.Config != nil
}

// Response is a single backend hypothesis. Err is set for result-level errors
// that do not end the backend stream.
type Response struct {
	Transcript string
	IsFinal    bool
	Confidence float32
	Err        error
}

// RequestSource is a lazy, finite, non-restartable request sequence. The first
// record is always the configuration record.
type RequestSource interface {
	Next(ctx context.Context) (Request, bool)
	// Requeue hands back an audio payload that never reached the backend.
	Requeue(audio []byte)
}

// Recognizer runs one blocking streaming exchange. It pulls requests from src
// until it is exhausted, calls onResponse for every hypothesis in arrival
// order, and returns nil when the backend closes the stream normally.
type Recognizer interface {
	Recognize(ctx context.Context, src RequestSource, onResponse func(Response)) error
}

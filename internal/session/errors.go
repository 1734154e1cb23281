package session

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/foxseedlab/livetranscribe/internal/transcriber"
)

type errorClass int

const (
	errorClassNone errorClass = iota
	errorClassStreamEnded
	errorClassDurationLimit
	errorClassFatal
	errorClassReportable
)

func (c errorClass) String() string {
	switch c {
	case errorClassNone:
		return "none"
	case errorClassStreamEnded:
		return "stream_ended"
	case errorClassDurationLimit:
		return "duration_limit"
	case errorClassFatal:
		return "fatal"
	case errorClassReportable:
		return "reportable"
	default:
		return "unknown"
	}
}

// The backend does not expose a structured code for its duration limit, so
// classification falls back to the message text.
var durationLimitPhrases = []string{"5 minutes", "max duration"}

var streamEndedPhrases = []string{"outofrange", "out of range", "stream ended", "stream removed"}

func classifyBackendError(err error) errorClass {
	if err == nil {
		return errorClassNone
	}
	msg := strings.ToLower(err.Error())
	for _, p := range durationLimitPhrases {
		if strings.Contains(msg, p) {
			return errorClassDurationLimit
		}
	}
	if errors.Is(err, transcriber.ErrBackendUnavailable) {
		return errorClassFatal
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return errorClassStreamEnded
	}
	for _, p := range streamEndedPhrases {
		if strings.Contains(msg, p) {
			return errorClassStreamEnded
		}
	}
	return errorClassReportable
}

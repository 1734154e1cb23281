package stream

import "github.com/foxseedlab/livetranscribe/internal/session"

const (
	messageTypeTranscript  = "transcript"
	messageTypeError       = "error"
	messageTypeTranslation = "translation"
)

type TranscriptMessage struct {
	Type           string   `json:"type"`
	Transcript     string   `json:"transcript"`
	IsFinal        bool     `json:"is_final"`
	Timestamp      int64    `json:"timestamp"`
	Confidence     *float64 `json:"confidence,omitempty"`
	BackendIsFinal bool     `json:"backend_is_final"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type TranslationMessage struct {
	Type        string `json:"type"`
	Source      string `json:"source"`
	Translation string `json:"translation"`
	Timestamp   int64  `json:"timestamp"`
	Partial     bool   `json:"partial,omitempty"`
}

func newTranscriptMessage(r session.NormalizedResult) TranscriptMessage {
	return TranscriptMessage{
		Type:           messageTypeTranscript,
		Transcript:     r.Transcript,
		IsFinal:        r.IsFinal,
		Timestamp:      r.Timestamp,
		Confidence:     r.Confidence,
		BackendIsFinal: r.BackendIsFinal,
	}
}

func newErrorMessage(e session.ErrorEvent) ErrorMessage {
	return ErrorMessage{Type: messageTypeError, Message: e.Message, Timestamp: e.Timestamp}
}

func newTranslationMessage(source, translation string, timestamp int64, partial bool) TranslationMessage {
	return TranslationMessage{
		Type:        messageTypeTranslation,
		Source:      source,
		Translation: translation,
		Timestamp:   timestamp,
		Partial:     partial,
	}
}

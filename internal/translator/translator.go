// Package translator defines the optional translation backend used for
// finalized transcripts.
package translator

import (
	"context"
	"time"
)

type Translator interface {
	// Translate returns the aggregated translation. ok is false on timeout,
	// backend failure or an empty answer.
	Translate(ctx context.Context, text string, timeout time.Duration) (translation string, ok bool)
	// TranslateStream yields incremental fragments. The channel is closed when
	// the backend finishes or ctx is done.
	TranslateStream(ctx context.Context, text string) (<-chan string, error)
}

// Instructions is the fixed preamble sent with every translation request.
func Instructions(targetLanguage string) string {
	return "You are a simultaneous interpreter. Translate the user's text into " + targetLanguage + ". " +
		"Output only the translation without any prefixes, explanations or quotation marks. " +
		"If the text is already in " + targetLanguage + ", return it as-is."
}

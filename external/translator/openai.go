package translator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/translator"
	"github.com/sashabaranov/go-openai"
)

const streamBuffer = 16

type ChatConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TargetLanguage string
}

// ChatTranslator translates through an OpenAI compatible chat completion
// endpoint. Gemini exposes one, which is the default.
type ChatTranslator struct {
	client       *openai.Client
	model        string
	instructions string
}

func NewChatTranslator(cfg ChatConfig) (*ChatTranslator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing translation API key")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &ChatTranslator{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        cfg.Model,
		instructions: translator.Instructions(cfg.TargetLanguage),
	}, nil
}

func (t *ChatTranslator) request(text string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: t.instructions},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Stream: stream,
	}
}

func (t *ChatTranslator) Translate(ctx context.Context, text string, timeout time.Duration) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := t.client.CreateChatCompletion(ctx, t.request(text, false))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("translation timed out", "timeout_ms", timeout.Milliseconds())
		} else {
			slog.Warn("translation failed", "error", err)
		}
		return "", false
	}
	if len(resp.Choices) == 0 {
		return "", false
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	return out, out != ""
}

func (t *ChatTranslator) TranslateStream(ctx context.Context, text string) (<-chan string, error) {
	stream, err := t.client.CreateChatCompletionStream(ctx, t.request(text, true))
	if err != nil {
		return nil, fmt.Errorf("open translation stream: %w", err)
	}

	out := make(chan string, streamBuffer)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("translation stream failed", "error", err)
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- resp.Choices[0].Delta.Content:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"chatbank/internal/logger"
	"chatbank/pkg/banktypes"
)

// localModelName is the model identifier the local completion server expects.
const localModelName = "sovereign-local-x1"

// LocalBackend serves the Sovereign-Core-X1 mode against a local
// OpenAI-compatible chat-completions server. Responses are single-shot; the
// one emitted chunk is final.
type LocalBackend struct {
	baseURL string
	client  openai.Client
}

// NewLocalBackend creates a backend for the completion server at baseURL
// (default http://localhost:8000/v1). The local core ignores credentials, so a
// placeholder key satisfies the client.
func NewLocalBackend(baseURL string) *LocalBackend {
	if baseURL == "" {
		baseURL = "http://localhost:8000/v1"
	}
	return &LocalBackend{
		baseURL: baseURL,
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey("sovereign-local"),
			option.WithMaxRetries(0),
		),
	}
}

// Name returns the backend name for logging and fallback disclosure.
func (b *LocalBackend) Name() string {
	return "local-x1"
}

// Generate sends a single-shot completion to the local core. Any transport
// failure or non-2xx status maps to ErrLocalUnreachable so the coordinator
// can fall back to the cloud.
func (b *LocalBackend) Generate(ctx context.Context, req banktypes.GenerateRequest, emit func(banktypes.StreamChunk)) error {
	logger.Debug("local request starting", "baseURL", b.baseURL, "model", localModelName)
	start := time.Now()

	temperature := temperatureFor(req)
	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: localModelName,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		logger.Warn("local core request failed", "error", err)
		return fmt.Errorf("%w: %v", ErrLocalUnreachable, err)
	}
	if len(completion.Choices) == 0 {
		return fmt.Errorf("%w: empty completion", ErrLocalUnreachable)
	}

	emit(banktypes.StreamChunk{
		Text:      completion.Choices[0].Message.Content,
		Finished:  true,
		ModelName: "Local-X1-Core",
		LatencyMs: time.Since(start).Milliseconds(),
	})
	return nil
}

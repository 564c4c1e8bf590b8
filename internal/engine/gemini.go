package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"chatbank/internal/logger"
	"chatbank/pkg/banktypes"
)

// ultraThinkingBudget is the fixed thinking allowance for Ultra requests.
const ultraThinkingBudget int32 = 32768

// GeminiBackend serves the Flash and Ultra cloud modes over the Gemini API.
// The underlying client is created lazily on the first request.
type GeminiBackend struct {
	apiKey string
	client *genai.Client
}

// NewGeminiBackend creates a Gemini backend with lazy initialization.
func NewGeminiBackend(apiKey string) *GeminiBackend {
	return &GeminiBackend{apiKey: apiKey}
}

// Name returns the backend name for logging and fallback disclosure.
func (b *GeminiBackend) Name() string {
	return "gemini"
}

func (b *GeminiBackend) initializeClientIfNeeded(ctx context.Context) error {
	if b.client != nil {
		return nil
	}
	if b.apiKey == "" {
		return ErrCredential
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: b.apiKey})
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}
	b.client = client
	logger.Debug("gemini client initialized")
	return nil
}

// Generate streams a cloud completion. Each emitted chunk carries the full
// cumulative text so far; callers hand it straight to the store merge without
// concatenating.
func (b *GeminiBackend) Generate(ctx context.Context, req banktypes.GenerateRequest, emit func(banktypes.StreamChunk)) error {
	if err := b.initializeClientIfNeeded(ctx); err != nil {
		return err
	}

	model, ok := modelRouter[req.Mode]
	if !ok || req.Mode == banktypes.EngineModeLocalX1 {
		model = modelRouter[banktypes.EngineModeFlash]
	}
	contents := buildContents(req)
	config := b.buildGenerationConfig(req)

	logger.Debug("gemini stream starting", "model", model, "search", req.Search)
	start := time.Now()

	var full strings.Builder
	var sources []banktypes.GroundingSource
	for resp, err := range b.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			logger.Error("gemini stream failed", "model", model, "error", err)
			return fmt.Errorf("gemini request failed: %w", err)
		}

		delta, chunkSources := walkResponse(resp)
		full.WriteString(delta)
		sources = append(sources, chunkSources...)

		emit(banktypes.StreamChunk{
			Text:      full.String(),
			Sources:   sources,
			ModelName: model,
			LatencyMs: time.Since(start).Milliseconds(),
		})
	}

	emit(banktypes.StreamChunk{
		Text:      full.String(),
		Finished:  true,
		Sources:   sources,
		ModelName: model,
		LatencyMs: time.Since(start).Milliseconds(),
	})
	logger.Debug("gemini stream finished", "model", model, "content_length", full.Len(), "sources", len(sources))
	return nil
}

// buildContents assembles the request parts: inline image data first when an
// image is attached, then the prompt text.
func buildContents(req banktypes.GenerateRequest) []*genai.Content {
	parts := make([]*genai.Part, 0, 2)
	if len(req.ImageData) > 0 {
		mimeType := req.ImageMIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: req.ImageData, MIMEType: mimeType},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})

	return []*genai.Content{{Parts: parts, Role: "user"}}
}

func (b *GeminiBackend) buildGenerationConfig(req banktypes.GenerateRequest) *genai.GenerateContentConfig {
	temperature := float32(temperatureFor(req))
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstructionFor(req), genai.RoleUser),
		Temperature:       &temperature,
	}

	if req.Mode == banktypes.EngineModeUltra {
		budget := ultraThinkingBudget
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}
	if req.Search {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return config
}

// walkResponse extracts this chunk's text delta and any grounding sources, in
// the order the API returned them. Duplicate sources are kept.
func walkResponse(resp *genai.GenerateContentResponse) (string, []banktypes.GroundingSource) {
	var text strings.Builder
	var sources []banktypes.GroundingSource

	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part.Text == "" || part.Thought {
					continue
				}
				text.WriteString(part.Text)
			}
		}
		if candidate.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			title := chunk.Web.Title
			if title == "" {
				title = "مصدر سيادي"
			}
			sources = append(sources, banktypes.GroundingSource{Title: title, URI: chunk.Web.URI})
		}
	}
	return text.String(), sources
}

package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"chatbank/internal/logger"
	"chatbank/pkg/banktypes"
)

// ImageGenerator produces a generated image as a data URI plus a caption.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, quality banktypes.ImageQuality) (dataURI, caption string, err error)
}

// GeminiImageBackend generates images through the Gemini image models, one
// model identifier per quality tier.
type GeminiImageBackend struct {
	apiKey string
	client *genai.Client
}

// NewGeminiImageBackend creates an image backend with lazy initialization.
func NewGeminiImageBackend(apiKey string) *GeminiImageBackend {
	return &GeminiImageBackend{apiKey: apiKey}
}

func (b *GeminiImageBackend) initializeClientIfNeeded(ctx context.Context) error {
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
	return nil
}

// GenerateImage renders the prompt and returns the first inline-data part as
// a PNG data URI. A response without inline data is a hard failure.
func (b *GeminiImageBackend) GenerateImage(ctx context.Context, prompt string, quality banktypes.ImageQuality) (string, string, error) {
	if err := b.initializeClientIfNeeded(ctx); err != nil {
		return "", "", err
	}

	model, ok := imageModelRouter[quality]
	if !ok {
		model = imageModelRouter[banktypes.ImageQuality1K]
	}
	logger.Debug("image generation starting", "model", model, "quality", string(quality))

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}
	resp, err := b.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return "", "", fmt.Errorf("image generation failed: %w", err)
	}

	var caption strings.Builder
	var dataURI string
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && dataURI == "" {
				dataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data)
				continue
			}
			if part.Text != "" {
				caption.WriteString(part.Text)
			}
		}
	}
	if dataURI == "" {
		return "", "", fmt.Errorf("image generation returned no inline data (model %s)", model)
	}

	return dataURI, caption.String(), nil
}

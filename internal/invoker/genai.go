package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// GenAIBackend serves Gemini text and Imagen image candidates.
type GenAIBackend struct {
	name   string
	client *genai.Client
}

// NewGenAIBackend creates a Gemini API client for provider name.
func NewGenAIBackend(ctx context.Context, name, baseURL, apiKey string) (*GenAIBackend, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client %s: %w", name, err)
	}
	return &GenAIBackend{name: name, client: client}, nil
}

// Generate dispatches to GenerateContent or GenerateImages by payload kind.
func (b *GenAIBackend) Generate(ctx context.Context, c models.BackendCandidate, p Payload) (Output, error) {
	if p.IsImage() {
		return b.generateImage(ctx, c, p)
	}
	return b.generateText(ctx, c, p)
}

func (b *GenAIBackend) generateText(ctx context.Context, c models.BackendCandidate, p Payload) (Output, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: p.System}}},
	}
	if c.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(c.Temperature))
	}
	if c.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(c.TopP))
	}
	if c.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.MaxTokens)
	}

	resp, err := b.client.Models.GenerateContent(ctx, c.Model, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: p.Prompt}}},
	}, cfg)
	if err != nil {
		return Output{}, b.wrapError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureTransient, Message: "response has no candidates"}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return Output{Text: sb.String(), Model: c.Model}, nil
}

func (b *GenAIBackend) generateImage(ctx context.Context, c models.BackendCandidate, p Payload) (Output, error) {
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		NegativePrompt: p.NegativePrompt,
		Seed:           genai.Ptr(int32(p.Seed)),
	}
	if p.Guidance > 0 {
		cfg.GuidanceScale = genai.Ptr(float32(p.Guidance))
	}
	if ar := aspectRatio(p.Width, p.Height); ar != "" {
		cfg.AspectRatio = ar
	}

	resp, err := b.client.Models.GenerateImages(ctx, c.Model, p.Prompt, cfg)
	if err != nil {
		return Output{}, b.wrapError(err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureTransient, Message: "response has no images"}
	}
	return Output{Image: resp.GeneratedImages[0].Image.ImageBytes, Model: c.Model}, nil
}

// aspectRatio maps a requested size onto the ratios Imagen accepts.
func aspectRatio(w, h int) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	switch r := float64(w) / float64(h); {
	case r >= 1.6:
		return "16:9"
	case r >= 1.2:
		return "4:3"
	case r <= 0.6:
		return "9:16"
	case r <= 0.85:
		return "3:4"
	}
	return "1:1"
}

func (b *GenAIBackend) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return NewStatusError(b.name, apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return NewStatusError(b.name, apiErrPtr.Code, apiErrPtr.Message, err)
	}
	return fmt.Errorf("%s: %w", b.name, err)
}

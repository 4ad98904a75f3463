package invoker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// OpenAIBackend talks to any OpenAI-compatible chat completions API
// (Together AI by default).
type OpenAIBackend struct {
	name   string
	client openai.Client
}

// NewOpenAIBackend creates a chat completions client for provider name.
func NewOpenAIBackend(name, baseURL, apiKey string, httpClient *http.Client) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	// Retries belong to the candidate walk, not the client.
	opts = append(opts, option.WithMaxRetries(0))
	return &OpenAIBackend{name: name, client: openai.NewClient(opts...)}
}

// Generate runs one chat completion. Image payloads are rejected as fatal.
func (b *OpenAIBackend) Generate(ctx context.Context, c models.BackendCandidate, p Payload) (Output, error) {
	if p.IsImage() {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureFatal, Message: "image generation is not supported"}
	}

	params := openai.ChatCompletionNewParams{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.Prompt),
		},
	}
	if c.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.MaxTokens))
	}
	if c.Temperature > 0 {
		params.Temperature = openai.Float(c.Temperature)
	}
	if c.TopP > 0 {
		params.TopP = openai.Float(c.TopP)
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Output{}, b.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureTransient, Message: "response has no choices"}
	}

	return Output{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

func (b *OpenAIBackend) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return NewStatusError(b.name, apiErr.StatusCode, apiErr.Message, err)
	}
	return fmt.Errorf("%s chat: %w", b.name, err)
}

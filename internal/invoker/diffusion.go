package invoker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

const (
	txt2imgPath = "/sdapi/v1/txt2img"

	// MemoryPath is the worker endpoint reporting accelerator memory.
	MemoryPath = "/sdapi/v1/memory"

	maxErrorBody = 4096
)

// DiffusionBackend speaks the Stable Diffusion web UI worker API.
type DiffusionBackend struct {
	name        string
	baseURL     string
	releasePath string
	httpClient  *http.Client
}

// NewDiffusionBackend creates a worker client. releasePath may be empty.
func NewDiffusionBackend(name, baseURL, releasePath string, httpClient *http.Client) *DiffusionBackend {
	if httpClient == nil {
		// Per-call deadlines come from the context.
		httpClient = &http.Client{}
	}
	return &DiffusionBackend{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		releasePath: releasePath,
		httpClient:  httpClient,
	}
}

// BaseURL returns the worker root URL.
func (b *DiffusionBackend) BaseURL() string {
	return b.baseURL
}

type txt2imgRequest struct {
	Prompt           string         `json:"prompt"`
	NegativePrompt   string         `json:"negative_prompt,omitempty"`
	Width            int            `json:"width"`
	Height           int            `json:"height"`
	Steps            int            `json:"steps"`
	CFGScale         float64        `json:"cfg_scale"`
	Seed             int64          `json:"seed"`
	BatchSize        int            `json:"batch_size"`
	OverrideSettings map[string]any `json:"override_settings,omitempty"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// workerError is the error body returned by the worker on failures.
type workerError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Errors string `json:"errors"`
}

// Generate requests one image. Text payloads are rejected as fatal.
func (b *DiffusionBackend) Generate(ctx context.Context, c models.BackendCandidate, p Payload) (Output, error) {
	if !p.IsImage() {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureFatal, Message: "text generation is not supported"}
	}

	body := txt2imgRequest{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Width:          p.Width,
		Height:         p.Height,
		Steps:          p.Steps,
		CFGScale:       p.Guidance,
		Seed:           p.Seed,
		BatchSize:      1,
	}
	if c.Model != "" {
		body.OverrideSettings = map[string]any{"sd_model_checkpoint": c.Model}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureFatal, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+txt2imgPath, bytes.NewReader(raw))
	if err != nil {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureFatal, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("%s txt2img: %w", b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Output{}, b.statusError(resp)
	}

	var decoded txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureTransient, Message: "decode response", Err: err}
	}
	if len(decoded.Images) == 0 {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureTransient, Message: "response has no images"}
	}

	img, err := base64.StdEncoding.DecodeString(stripDataURI(decoded.Images[0]))
	if err != nil {
		return Output{}, &BackendError{Provider: b.name, Kind: models.FailureTransient, Message: "decode image", Err: err}
	}
	return Output{Image: img, Model: c.Model}, nil
}

// statusError classifies a non-200 worker response. The worker reports
// CUDA exhaustion as {"error": "OutOfMemoryError"}.
func (b *DiffusionBackend) statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var we workerError
	if json.Unmarshal(data, &we) == nil && we.Error != "" {
		msg := we.Error
		if we.Errors != "" {
			msg += ": " + we.Errors
		} else if we.Detail != "" {
			msg += ": " + we.Detail
		}
		if we.Error == "OutOfMemoryError" {
			return &BackendError{Provider: b.name, StatusCode: resp.StatusCode, Kind: models.FailureResourceExhausted, Message: msg}
		}
		return NewStatusError(b.name, resp.StatusCode, msg, nil)
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return NewStatusError(b.name, resp.StatusCode, msg, nil)
}

func stripDataURI(s string) string {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+len(";base64,"):]
	}
	return s
}

// ReleaseMemory asks the worker to free accelerator memory. It is a no-op
// when no release path is configured.
func (b *DiffusionBackend) ReleaseMemory(ctx context.Context) error {
	if b.releasePath == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+b.releasePath, nil)
	if err != nil {
		return fmt.Errorf("build release request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("release memory on %s: %w", b.name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("release memory on %s: HTTP %d", b.name, resp.StatusCode)
	}
	return nil
}

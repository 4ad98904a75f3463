package invoker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

var sdCandidate = models.BackendCandidate{ID: "sd15", Provider: "sd", Model: "v1-5-pruned"}

func imagePayload() Payload {
	return Payload{Kind: PayloadImage, Prompt: "a fox", Width: 512, Height: 512, Steps: 20, Guidance: 7.5, Seed: 1024}
}

func TestDiffusionGenerate(t *testing.T) {
	var got txt2imgRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sdapi/v1/txt2img", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"images": []string{base64.StdEncoding.EncodeToString(pngHeader)},
		})
	}))
	defer srv.Close()

	b := NewDiffusionBackend("sd", srv.URL+"/", "", nil)
	out, err := b.Generate(context.Background(), sdCandidate, imagePayload())

	require.NoError(t, err)
	assert.Equal(t, pngHeader, out.Image)
	assert.Equal(t, "a fox", got.Prompt)
	assert.Equal(t, int64(1024), got.Seed)
	assert.Equal(t, 20, got.Steps)
	assert.Equal(t, 7.5, got.CFGScale)
	assert.Equal(t, "v1-5-pruned", got.OverrideSettings["sd_model_checkpoint"])
}

func TestDiffusionGenerateDataURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"images": []string{"data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)},
		})
	}))
	defer srv.Close()

	out, err := NewDiffusionBackend("sd", srv.URL, "", nil).Generate(context.Background(), sdCandidate, imagePayload())
	require.NoError(t, err)
	assert.Equal(t, pngHeader, out.Image)
}

func TestDiffusionErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind models.FailureKind
	}{
		{"worker oom", 500, `{"error":"OutOfMemoryError","detail":"","errors":"CUDA out of memory. Tried to allocate 2.00 GiB"}`, models.FailureResourceExhausted},
		{"insufficient storage", 507, `gpu full`, models.FailureResourceExhausted},
		{"other worker error", 500, `{"error":"RuntimeError","errors":"bad tensor"}`, models.FailureTransient},
		{"throttled", 429, ``, models.FailureTransient},
		{"missing model", 404, `{"detail":"Not Found"}`, models.FailureFatal},
		{"empty images", 200, `{"images":[]}`, models.FailureTransient},
		{"garbage body", 200, `not json`, models.FailureTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewDiffusionBackend("sd", srv.URL, "", nil).Generate(context.Background(), sdCandidate, imagePayload())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, Classify(err))
		})
	}
}

func TestDiffusionRejectsText(t *testing.T) {
	_, err := NewDiffusionBackend("sd", "http://127.0.0.1:1", "", nil).Generate(context.Background(), sdCandidate, Payload{Prompt: "hi"})
	assert.Equal(t, models.FailureFatal, Classify(err))
}

func TestDiffusionReleaseMemory(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sdapi/v1/unload-checkpoint", r.URL.Path)
		hits++
	}))
	defer srv.Close()

	require.NoError(t, NewDiffusionBackend("sd", srv.URL, "", nil).ReleaseMemory(context.Background()))
	assert.Equal(t, 0, hits)

	require.NoError(t, NewDiffusionBackend("sd", srv.URL, "/sdapi/v1/unload-checkpoint", nil).ReleaseMemory(context.Background()))
	assert.Equal(t, 1, hits)
}

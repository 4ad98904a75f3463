package imagegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

func TestCleanPrompt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a quiet harbor at dusk  ", "a quiet harbor at dusk"},
		{"Generate image of a red bicycle", "a red bicycle"},
		{"CREATE IMAGE OF a dragon", "a dragon"},
		{"make image of mountains", "mountains"},
		{"draw a cat", "a cat"},
		{"Paint the sea", "the sea"},
		{"a painting of draw bridges", "a painting of draw bridges"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPrompt(tt.in))
		})
	}
}

func TestRefine(t *testing.T) {
	t.Run("uses model output", func(t *testing.T) {
		runner := &scriptedRunner{results: map[string][]models.StepResult{
			models.StepRefinePrompt: {okText(models.StepRefinePrompt, "Prompt: \"a red bicycle leaning on a brick wall, golden hour\"")},
		}}
		p := newTestPipeline(t, runner, &fakeProber{state: acceleratedState()})

		res := p.Refine(context.Background(), "draw a red bicycle")

		assert.Equal(t, models.StatusOk, res.Status)
		assert.Equal(t, "a red bicycle leaning on a brick wall, golden hour", res.Output)
		require.Len(t, runner.calls, 1)
		assert.Contains(t, runner.calls[0].payload.Prompt, "draw a red bicycle")
	})

	t.Run("degrades to cleaned prompt", func(t *testing.T) {
		runner := &scriptedRunner{}
		p := newTestPipeline(t, runner, &fakeProber{state: acceleratedState()})

		res := p.Refine(context.Background(), "generate image of a red bicycle")

		assert.Equal(t, models.StatusDegraded, res.Status)
		assert.Equal(t, "a red bicycle", res.Output)
	})
}

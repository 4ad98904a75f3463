package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyansh1913/open-deep-research-web/internal/config"
	"github.com/priyansh1913/open-deep-research-web/internal/history"
	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
	"github.com/priyansh1913/open-deep-research-web/internal/service"
)

type fakeService struct {
	report     models.PipelineResult
	image      models.PipelineResult
	runs       map[string]models.PipelineResult
	imageReq   models.ImageRequest
	followUp   models.FollowUpRequest
	fast       bool
	listOpts   history.ListOptions
	listResult []history.RunSummary
}

func newFakeService() *fakeService {
	report := models.PipelineResult{
		ID:   "run-1",
		Kind: models.KindResearch,
		Steps: []models.StepResult{
			{Step: models.StepMainResearch, Output: "findings", Status: models.StatusOk, Candidate: "mistral-7b"},
			{Step: models.StepSummarize, Status: models.StatusDegraded, Diagnostic: "all candidates failed"},
		},
		Artifact: "# Research Report: tides\n\nThe moon pulls the sea.",
		Status:   models.StatusDegraded,
		Metadata: models.Metadata{Subject: "tides", Mode: models.ModeFast, Timestamp: time.Now()},
	}
	return &fakeService{
		report: report,
		image: models.PipelineResult{
			ID:       "img-1",
			Kind:     models.KindImage,
			Steps:    []models.StepResult{{Step: models.StepFinalize, Status: models.StatusOk}},
			Artifact: "a fox",
			Image:    []byte("\x89PNG fake"),
			Status:   models.StatusOk,
		},
		runs: map[string]models.PipelineResult{"run-1": report},
		listResult: []history.RunSummary{
			{ID: "run-1", Kind: models.KindResearch, Subject: "tides", Status: models.StatusOk, CreatedAt: time.Now()},
		},
	}
}

func (f *fakeService) RunResearch(ctx context.Context, topic string, fast bool) (models.PipelineResult, error) {
	return f.RunResearchObserved(ctx, topic, fast, nil)
}

func (f *fakeService) RunResearchObserved(ctx context.Context, topic string, fast bool, observe service.Observer) (models.PipelineResult, error) {
	f.fast = fast
	for _, s := range f.report.Steps {
		if observe != nil {
			observe(s)
		}
	}
	return f.report, nil
}

func (f *fakeService) RunFollowUp(ctx context.Context, req models.FollowUpRequest) (models.StepResult, error) {
	if err := req.Validate(); err != nil {
		return models.StepResult{}, err
	}
	f.followUp = req
	return models.StepResult{Step: models.StepFollowUp, Output: "Because of gravity.", Status: models.StatusOk}, nil
}

func (f *fakeService) FollowUpQuestions(ctx context.Context, topic, report string) ([]string, error) {
	return []string{"What about " + topic + "?", "Why?"}, nil
}

func (f *fakeService) RunImageGeneration(ctx context.Context, req models.ImageRequest) (models.PipelineResult, error) {
	return f.RunImageGenerationObserved(ctx, req, nil)
}

func (f *fakeService) RunImageGenerationObserved(ctx context.Context, req models.ImageRequest, observe service.Observer) (models.PipelineResult, error) {
	f.imageReq = req
	for _, s := range f.image.Steps {
		if observe != nil {
			observe(s)
		}
	}
	return f.image, nil
}

func (f *fakeService) RefinePrompt(ctx context.Context, prompt string) (string, error) {
	return "refined: " + prompt, nil
}

func (f *fakeService) GetRun(ctx context.Context, id string) (models.PipelineResult, error) {
	res, ok := f.runs[id]
	if !ok {
		return models.PipelineResult{}, fmt.Errorf("%w: run %s", service.ErrNotFound, id)
	}
	return res, nil
}

func (f *fakeService) ListRuns(ctx context.Context, opts history.ListOptions) ([]history.RunSummary, error) {
	f.listOpts = opts
	return f.listResult, nil
}

// useFakeApp swaps the app factory for one returning svc and records the
// config each command was built with.
func useFakeApp(t *testing.T, svc Service) **config.Config {
	t.Helper()
	var seen *config.Config
	orig := newApp
	newApp = func(ctx context.Context, cfg *config.Config, stderr io.Writer) (*app, error) {
		seen = cfg
		return &app{cfg: cfg, svc: svc, logger: logger.NewConsoleLogger(stderr, "info")}, nil
	}
	t.Cleanup(func() { newApp = orig })
	return &seen
}

// execute runs the root command with a config path under a temp dir.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "config.yaml")))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestResearchCommand(t *testing.T) {
	svc := newFakeService()
	useFakeApp(t, svc)

	t.Run("stdout", func(t *testing.T) {
		stdout, stderr, err := execute(t, "research", "--fast", "tides")
		require.NoError(t, err)
		assert.True(t, svc.fast)
		assert.Contains(t, stdout, "# Research Report: tides")
		assert.Contains(t, stderr, "[INFO] step main_research ok")
		assert.Contains(t, stderr, "[WARN] step summarize degraded")
		assert.Contains(t, stderr, "all candidates failed")
	})

	t.Run("output file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.md")
		stdout, _, err := execute(t, "research", "-o", path, "ocean", "tides")
		require.NoError(t, err)
		assert.Empty(t, stdout)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, svc.report.Artifact, string(data))
	})

	t.Run("topic required", func(t *testing.T) {
		_, _, err := execute(t, "research")
		assert.Error(t, err)
	})
}

func TestImageCommand(t *testing.T) {
	tests := []struct {
		name  string
		final models.StepStatus
		want  string
	}{
		{"generated", models.StatusOk, "Image written to"},
		{"placeholder", models.StatusDegraded, "Placeholder image written to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.image.Steps = []models.StepResult{{Step: models.StepFinalize, Status: tt.final}}
			useFakeApp(t, svc)

			path := filepath.Join(t.TempDir(), "out.png")
			stdout, stderr, err := execute(t, "image", "--width", "768", "--steps", "20", "--refine", "-o", path, "a", "fox")
			require.NoError(t, err)
			assert.Contains(t, stdout, tt.want)
			assert.Contains(t, stderr, "step finalize "+string(tt.final))

			assert.Equal(t, "a fox", svc.imageReq.Prompt)
			assert.Equal(t, 768, svc.imageReq.Width)
			assert.Equal(t, 20, svc.imageReq.Steps)
			assert.True(t, svc.imageReq.Refine)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, svc.image.Image, data)
		})
	}
}

func TestFlagOverrides(t *testing.T) {
	seen := useFakeApp(t, newFakeService())

	_, _, err := execute(t, "image", "--cpu", "--token-budget", "40", "--log-level", "debug",
		"-o", filepath.Join(t.TempDir(), "x.png"), "a fox")
	require.NoError(t, err)
	require.NotNil(t, *seen)
	assert.True(t, (*seen).DeviceThresholds.ForceCPU)
	assert.Equal(t, 40, (*seen).TokenBudget)
	assert.Equal(t, "debug", (*seen).LogLevel)

	_, _, err = execute(t, "refine", "a fox")
	require.NoError(t, err)
	assert.False(t, (*seen).DeviceThresholds.ForceCPU)
	assert.Equal(t, 75, (*seen).TokenBudget)
}

func TestFollowUpCommand(t *testing.T) {
	svc := newFakeService()
	useFakeApp(t, svc)

	reportPath := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, os.WriteFile(reportPath, []byte("# Report"), 0644))

	t.Run("from file", func(t *testing.T) {
		stdout, _, err := execute(t, "follow-up", "--report", reportPath, "--topic", "tides", "why", "tides?")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Because of gravity.")
		assert.Equal(t, "# Report", svc.followUp.PriorReport)
		assert.Equal(t, "why tides?", svc.followUp.Question)
	})

	t.Run("from stored run", func(t *testing.T) {
		_, _, err := execute(t, "follow-up", "--run", "run-1", "why?")
		require.NoError(t, err)
		assert.Equal(t, "tides", svc.followUp.Topic)
		assert.Equal(t, svc.report.Artifact, svc.followUp.PriorReport)
	})

	t.Run("suggest questions", func(t *testing.T) {
		stdout, _, err := execute(t, "follow-up", "--run", "run-1", "--questions")
		require.NoError(t, err)
		assert.Contains(t, stdout, "1. What about tides?")
		assert.Contains(t, stdout, "2. Why?")
	})

	errCases := []struct {
		name string
		args []string
	}{
		{"no source", []string{"follow-up", "why?"}},
		{"both sources", []string{"follow-up", "--report", reportPath, "--run", "run-1", "why?"}},
		{"no question", []string{"follow-up", "--report", reportPath}},
		{"unknown run", []string{"follow-up", "--run", "missing", "why?"}},
		{"missing file", []string{"follow-up", "--report", "/nonexistent/report.md", "why?"}},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execute(t, tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestRefineCommand(t *testing.T) {
	useFakeApp(t, newFakeService())
	stdout, _, err := execute(t, "refine", "draw", "a", "cat")
	require.NoError(t, err)
	assert.Equal(t, "refined: draw a cat\n", stdout)
}

func TestHistoryCommands(t *testing.T) {
	svc := newFakeService()
	useFakeApp(t, svc)

	t.Run("list", func(t *testing.T) {
		stdout, _, err := execute(t, "history", "list", "--kind", "research", "--limit", "5")
		require.NoError(t, err)
		assert.Contains(t, stdout, "ID")
		assert.Contains(t, stdout, "run-1")
		assert.Contains(t, stdout, "tides")
		assert.Equal(t, history.ListOptions{Kind: "research", Limit: 5}, svc.listOpts)
	})

	t.Run("list empty", func(t *testing.T) {
		empty := newFakeService()
		empty.listResult = nil
		useFakeApp(t, empty)
		stdout, _, err := execute(t, "history", "list")
		require.NoError(t, err)
		assert.Contains(t, stdout, "No runs found")
	})

	t.Run("show", func(t *testing.T) {
		stdout, _, err := execute(t, "history", "show", "run-1")
		require.NoError(t, err)
		assert.Contains(t, stdout, "research: tides")
		assert.Contains(t, stdout, "The moon pulls the sea.")
	})

	t.Run("show json", func(t *testing.T) {
		stdout, _, err := execute(t, "history", "show", "--json", "run-1")
		require.NoError(t, err)
		var res models.PipelineResult
		require.NoError(t, json.Unmarshal([]byte(stdout), &res))
		assert.Equal(t, "run-1", res.ID)
		assert.Len(t, res.Steps, 2)
	})

	t.Run("show html", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.html")
		_, _, err := execute(t, "history", "show", "--html", path, "run-1")
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<h1>Research Report: tides</h1>")
	})

	t.Run("show missing", func(t *testing.T) {
		_, _, err := execute(t, "history", "show", "nope")
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		t.Setenv("TOGETHER_API_KEY", "test-key")
		stdout, _, err := execute(t, "validate")
		require.NoError(t, err)
		assert.Contains(t, stdout, "✓ Structure is valid")
		assert.Contains(t, stdout, "✓ Credentials resolved")
		assert.Contains(t, stdout, "main_research → summarize")
		assert.Contains(t, stdout, "Configuration is valid!")
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Setenv("TOGETHER_API_KEY", "")
		stdout, _, err := execute(t, "validate")
		require.Error(t, err)
		assert.Contains(t, stdout, "TOGETHER_API_KEY")
		assert.Contains(t, stdout, "Found 1 validation error(s)!")
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("timeouts: [not, a, map"), 0644))

		cmd := NewRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"validate", "--config", path})
		require.Error(t, cmd.Execute())
		assert.Contains(t, out.String(), "failed to load config")
	})
}

func TestBotCommandRequiresToken(t *testing.T) {
	useFakeApp(t, newFakeService())
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	_, _, err := execute(t, "bot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
}

func TestBuildApp(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TOGETHER_API_KEY", "test-key")

	cfg := config.DefaultConfig()
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.History.DSN = filepath.Join(dir, "history.db")
	cfg.Artifacts.Enabled = true
	cfg.Artifacts.Dir = filepath.Join(dir, "artifacts")
	cfg.DeviceThresholds.ForceCPU = true

	var stderr bytes.Buffer
	a, err := buildApp(context.Background(), cfg, &stderr)
	require.NoError(t, err)
	require.NotNil(t, a.svc)

	runs, err := a.svc.ListRuns(context.Background(), history.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, a.Close())
	assert.FileExists(t, filepath.Join(dir, "history.db"))
	assert.FileExists(t, filepath.Join(dir, "logs", "latest.log"))
}

func TestBuildAppMissingCredentials(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "")
	cfg := config.DefaultConfig()
	cfg.LogDir = ""
	cfg.History.Enabled = false

	_, err := buildApp(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOGETHER_API_KEY")
}

func TestWorkerURL(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "test-key")
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.ResolveCredentials(os.Getenv))

	inv, err := invoker.FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer inv.Close()

	assert.Equal(t, "http://127.0.0.1:7860", workerURL(cfg, inv))

	// Only text providers serve the generate step.
	cfg.Models[models.StepGenerate] = []models.BackendCandidate{{ID: "x", Provider: "together", Model: "m"}}
	assert.Empty(t, workerURL(cfg, inv))
}

package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

func TestNewFileLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	fl, err := NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	info, err := os.Stat(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	target, err := os.Readlink(filepath.Join(dir, "latest.log"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(fl.Path()), target)
	assert.True(t, strings.HasPrefix(target, "run-"))
}

func TestFileLoggerWritesAndFilters(t *testing.T) {
	dir := t.TempDir()

	fl, err := NewFileLogger(dir, "warn")
	require.NoError(t, err)

	fl.Infof("hidden info")
	fl.Warnf("visible %s", "warning")
	fl.Errorf("visible error")
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.Path())
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "=== deepresearch log ===")
	assert.Contains(t, content, "Started at:")
	assert.Contains(t, content, "[WARN] visible warning")
	assert.Contains(t, content, "[ERROR] visible error")
	assert.NotContains(t, content, "hidden info")
}

func TestFileLoggerLogStepResult(t *testing.T) {
	fl, err := NewFileLogger(t.TempDir(), "info")
	require.NoError(t, err)

	fl.LogStepResult(models.StepResult{Step: models.StepMainResearch, Status: models.StatusOk, Candidate: "mistral-7b"})
	fl.LogStepResult(models.StepResult{Step: models.StepSummarize, Status: models.StatusDegraded, Diagnostic: "all candidates failed"})
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(fl.Path())
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "[INFO] step main_research ok (0ms) via mistral-7b")
	assert.Contains(t, content, "[WARN] step summarize degraded (0ms): all candidates failed")
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	fl, err := NewFileLogger(t.TempDir(), "info")
	require.NoError(t, err)

	require.NoError(t, fl.Close())
	require.NoError(t, fl.Close())

	// Writes after close are dropped.
	fl.Infof("after close")
}

func TestFileLoggerReplacesSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "latest.log")
	require.NoError(t, os.Symlink("run-old.log", link))

	fl, err := NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.NotEqual(t, "run-old.log", target)
}

func TestLogPipelineRun(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	res := models.PipelineResult{
		ID:     "abc/123",
		Kind:   models.KindImage,
		Status: models.StatusDegraded,
		Steps: []models.StepResult{
			{Step: models.StepGenerate, Status: models.StatusDegraded, Tried: []string{"sd15"}, Failure: models.FailureResourceExhausted, Diagnostic: "out of memory"},
			{Step: models.StepFinalize, Status: models.StatusDegraded, Output: "placeholder"},
		},
		Metadata: models.Metadata{
			Subject:   "a red fox",
			Mode:      "image",
			Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
			Device:    &models.DeviceState{Kind: models.DeviceKindCPUOnly},
		},
	}

	require.NoError(t, fl.LogPipelineRun(res))

	data, err := os.ReadFile(filepath.Join(dir, "runs", "abc_123.log"))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "=== image abc/123 ===")
	assert.Contains(t, content, "Subject: a red fox")
	assert.Contains(t, content, "Device: cpu_only")
	assert.Contains(t, content, "--- 1. generate [degraded]")
	assert.Contains(t, content, "Tried: sd15")
	assert.Contains(t, content, "Failure: resource_exhausted")
	assert.Contains(t, content, "Diagnostic: out of memory")
	assert.Contains(t, content, "Output:\nplaceholder")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "unnamed", sanitizeFilename(""))
	assert.Equal(t, "a-b_c_d", sanitizeFilename("a-b_c/d"))
}

package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyansh1913/open-deep-research-web/internal/artifacts"
	"github.com/priyansh1913/open-deep-research-web/internal/history"
	"github.com/priyansh1913/open-deep-research-web/internal/imagegen"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
	"github.com/priyansh1913/open-deep-research-web/internal/research"
)

type fakeResearcher struct {
	mu       sync.Mutex
	calls    int
	topic    string
	fast     bool
	followUp models.StepResult
}

func (f *fakeResearcher) Run(ctx context.Context, topic string, fast bool, observe research.Observer) models.PipelineResult {
	f.mu.Lock()
	f.calls++
	f.topic, f.fast = topic, fast
	f.mu.Unlock()

	step := models.StepResult{Step: models.StepMainResearch, Output: "findings", Status: models.StatusOk, Candidate: "mistral-7b"}
	if observe != nil {
		observe(step)
	}
	return models.PipelineResult{
		Kind:     models.KindResearch,
		Steps:    []models.StepResult{step},
		Artifact: "# Research Report: " + topic,
		Status:   models.StatusOk,
		Metadata: models.Metadata{Subject: topic, Mode: models.ModeFast},
	}
}

func (f *fakeResearcher) FollowUp(ctx context.Context, topic, priorReport, question string) models.StepResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.followUp
}

func (f *fakeResearcher) FollowUpQuestions(ctx context.Context, topic, report string) ([]string, models.StepResult) {
	return []string{"q1", "q2"}, models.StepResult{Step: models.StepFollowUpQs, Status: models.StatusOk}
}

type fakeImages struct {
	calls  int
	refine models.StepResult
}

func (f *fakeImages) Run(ctx context.Context, req models.ImageRequest, observe imagegen.Observer) models.PipelineResult {
	f.calls++
	fin := models.StepResult{Step: models.StepFinalize, Output: req.Prompt, Status: models.StatusOk}
	if observe != nil {
		observe(fin)
	}
	return models.PipelineResult{
		Kind:     models.KindImage,
		Steps:    []models.StepResult{fin},
		Artifact: req.Prompt,
		Image:    []byte("png"),
		Status:   models.StatusOk,
		Metadata: models.Metadata{Subject: req.Prompt},
	}
}

func (f *fakeImages) Refine(ctx context.Context, prompt string) models.StepResult {
	return f.refine
}

type failingSink struct{}

func (failingSink) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("disk full")
}

func (failingSink) Get(context.Context, string) ([]byte, error) { return nil, artifacts.ErrNotFound }

type recordingRunLog struct {
	ids []string
}

func (r *recordingRunLog) LogPipelineRun(res models.PipelineResult) error {
	r.ids = append(r.ids, res.ID)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "run-" + string(rune('0'+n))
	}
}

func newTestService(t *testing.T, r Researcher, img ImageGenerator, sink artifacts.Sink) (*Service, *history.Store) {
	t.Helper()
	store, err := history.Open(context.Background(), history.DriverSQLite, filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(r, img, Options{History: store, Artifacts: sink, NewID: sequentialIDs()}), store
}

func TestRunResearch(t *testing.T) {
	r := &fakeResearcher{}
	sink, err := artifacts.NewLocalSink(t.TempDir())
	require.NoError(t, err)
	svc, store := newTestService(t, r, &fakeImages{}, sink)

	var observed []string
	res, err := svc.RunResearchObserved(context.Background(), "  ocean tides  ", true, func(s models.StepResult) {
		observed = append(observed, s.Step)
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.ID)
	assert.Equal(t, "ocean tides", r.topic)
	assert.True(t, r.fast)
	assert.Equal(t, []string{models.StepMainResearch}, observed)
	assert.NotEmpty(t, res.Metadata.Location)

	stored, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, res.Artifact, stored.Artifact)
	assert.Equal(t, res.Metadata.Location, stored.Metadata.Location)

	report, err := sink.Get(context.Background(), artifacts.ReportKey("run-1"))
	require.NoError(t, err)
	assert.Equal(t, res.Artifact, string(report))
}

func TestInvalidInputIsRejectedBeforeAnyStep(t *testing.T) {
	r := &fakeResearcher{}
	img := &fakeImages{}
	svc := New(r, img, Options{})
	ctx := context.Background()

	_, err := svc.RunResearch(ctx, "   ", false)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.RunFollowUp(ctx, models.FollowUpRequest{Question: "why?"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.RunFollowUp(ctx, models.FollowUpRequest{PriorReport: "report"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.RunImageGeneration(ctx, models.ImageRequest{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.RunImageGeneration(ctx, models.ImageRequest{Prompt: "x", Width: -1})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.RefinePrompt(ctx, "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.FollowUpQuestions(ctx, "topic", " ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	assert.Zero(t, r.calls)
	assert.Zero(t, img.calls)
}

func TestRunFollowUp(t *testing.T) {
	r := &fakeResearcher{followUp: models.StepResult{
		Step:      models.StepFollowUp,
		Output:    "Tides are caused by the moon.",
		Status:    models.StatusOk,
		Candidate: "mistral-7b",
	}}
	runLog := &recordingRunLog{}
	store, err := history.Open(context.Background(), history.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer store.Close()
	svc := New(r, &fakeImages{}, Options{History: store, RunLog: runLog, NewID: sequentialIDs()})

	step, err := svc.RunFollowUp(context.Background(), models.FollowUpRequest{
		Topic:       "tides",
		PriorReport: "# Research Report: tides",
		Question:    "What causes tides?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Tides are caused by the moon.", step.Output)
	assert.Equal(t, []string{"run-1"}, runLog.ids)

	list, err := svc.ListRuns(context.Background(), history.ListOptions{Kind: models.KindFollowUp})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "What causes tides?", list[0].Subject)
}

func TestRunImageGeneration(t *testing.T) {
	t.Run("stores image", func(t *testing.T) {
		sink, err := artifacts.NewLocalSink(t.TempDir())
		require.NoError(t, err)
		svc, _ := newTestService(t, &fakeResearcher{}, &fakeImages{}, sink)

		res, err := svc.RunImageGeneration(context.Background(), models.ImageRequest{Prompt: "a fox"})
		require.NoError(t, err)

		data, err := sink.Get(context.Background(), artifacts.ImageKey(res.ID))
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), data)
	})

	t.Run("artifact failure is not an error", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeResearcher{}, &fakeImages{}, failingSink{})

		res, err := svc.RunImageGeneration(context.Background(), models.ImageRequest{Prompt: "a fox"})
		require.NoError(t, err)
		assert.Empty(t, res.Metadata.Location)
		assert.Equal(t, []byte("png"), res.Image)
	})
}

func TestRefinePrompt(t *testing.T) {
	img := &fakeImages{refine: models.StepResult{Step: models.StepRefinePrompt, Output: "a red fox", Status: models.StatusDegraded}}
	svc := New(&fakeResearcher{}, img, Options{})

	out, err := svc.RefinePrompt(context.Background(), "draw a red fox")
	require.NoError(t, err)
	assert.Equal(t, "a red fox", out)
}

func TestFollowUpQuestions(t *testing.T) {
	svc := New(&fakeResearcher{}, &fakeImages{}, Options{})
	qs, err := svc.FollowUpQuestions(context.Background(), "tides", "report")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, qs)
}

func TestGetRun(t *testing.T) {
	t.Run("history disabled", func(t *testing.T) {
		svc := New(&fakeResearcher{}, &fakeImages{}, Options{})
		_, err := svc.GetRun(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNotFound)

		list, err := svc.ListRuns(context.Background(), history.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeResearcher{}, &fakeImages{}, nil)
		_, err := svc.GetRun(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stored run", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeResearcher{}, &fakeImages{}, nil)
		res, err := svc.RunResearch(context.Background(), "tides", false)
		require.NoError(t, err)

		got, err := svc.GetRun(context.Background(), res.ID)
		require.NoError(t, err)
		assert.Equal(t, res.Artifact, got.Artifact)
	})
}

func TestNewPanicsOnNilPipeline(t *testing.T) {
	assert.Panics(t, func() { New(nil, &fakeImages{}, Options{}) })
}

func TestDefaultIDsAreUnique(t *testing.T) {
	svc := New(&fakeResearcher{}, &fakeImages{}, Options{})
	a, err := svc.RunResearch(context.Background(), "x", true)
	require.NoError(t, err)
	b, err := svc.RunResearch(context.Background(), "x", true)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
}

func TestFinishedRunsAreSummarized(t *testing.T) {
	var buf bytes.Buffer
	svc := New(&fakeResearcher{}, &fakeImages{}, Options{
		Logger: logger.NewConsoleLogger(&buf, "info"),
		NewID:  sequentialIDs(),
	})

	_, err := svc.RunResearch(context.Background(), "tides", true)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "research run-1 (fast) finished ok")
	assert.Contains(t, out, "Steps: 1 (degraded: 0)")
}

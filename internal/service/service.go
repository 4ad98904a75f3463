// Package service is the entry point shared by the HTTP, CLI and Telegram
// front-ends. It validates caller input, runs a pipeline, assigns the run
// ID and persists the result.
//
// Only invalid input produces an error. Backend trouble of any kind comes
// back as a degraded result.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/priyansh1913/open-deep-research-web/internal/artifacts"
	"github.com/priyansh1913/open-deep-research-web/internal/history"
	"github.com/priyansh1913/open-deep-research-web/internal/imagegen"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
	"github.com/priyansh1913/open-deep-research-web/internal/research"
)

// ErrNotFound is returned by GetRun for unknown IDs or when history is disabled.
var ErrNotFound = errors.New("not found")

// Researcher runs research and follow-up requests. *research.Pipeline implements it.
type Researcher interface {
	Run(ctx context.Context, topic string, fast bool, observe research.Observer) models.PipelineResult
	FollowUp(ctx context.Context, topic, priorReport, question string) models.StepResult
	FollowUpQuestions(ctx context.Context, topic, report string) ([]string, models.StepResult)
}

// ImageGenerator runs image requests. *imagegen.Pipeline implements it.
type ImageGenerator interface {
	Run(ctx context.Context, req models.ImageRequest, observe imagegen.Observer) models.PipelineResult
	Refine(ctx context.Context, prompt string) models.StepResult
}

// HistoryStore persists runs. *history.Store implements it.
type HistoryStore interface {
	SaveRun(ctx context.Context, res models.PipelineResult) error
	GetRun(ctx context.Context, id string) (models.PipelineResult, error)
	ListRuns(ctx context.Context, opts history.ListOptions) ([]history.RunSummary, error)
}

// RunLogger writes a detailed record of a finished run. *logger.FileLogger implements it.
type RunLogger interface {
	LogPipelineRun(res models.PipelineResult) error
}

// Observer receives each step as it completes.
type Observer func(models.StepResult)

// Options holds the optional collaborators of a Service.
type Options struct {
	History   HistoryStore   // nil disables history
	Artifacts artifacts.Sink // nil disables artifact storage
	RunLog    RunLogger      // nil disables per-run log files
	Logger    logger.Logger
	NewID     func() string
}

// Service is safe for concurrent use; each call is an independent run.
type Service struct {
	research  Researcher
	images    ImageGenerator
	history   HistoryStore
	artifacts artifacts.Sink
	runLog    RunLogger
	logger    logger.Logger
	newID     func() string
}

// New creates a Service. It panics on a nil pipeline.
func New(r Researcher, img ImageGenerator, opts Options) *Service {
	if r == nil || img == nil {
		panic("service: nil pipeline")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		research:  r,
		images:    img,
		history:   opts.History,
		artifacts: opts.Artifacts,
		runLog:    opts.RunLog,
		logger:    opts.Logger,
		newID:     opts.NewID,
	}
}

// RunResearch produces a report on topic.
func (s *Service) RunResearch(ctx context.Context, topic string, fast bool) (models.PipelineResult, error) {
	return s.RunResearchObserved(ctx, topic, fast, nil)
}

// RunResearchObserved is RunResearch with a per-step callback.
func (s *Service) RunResearchObserved(ctx context.Context, topic string, fast bool, observe Observer) (models.PipelineResult, error) {
	req := models.ResearchRequest{Topic: topic, Fast: fast}
	if err := req.Validate(); err != nil {
		return models.PipelineResult{}, err
	}

	res := s.research.Run(ctx, strings.TrimSpace(topic), fast, research.Observer(observe))
	res.ID = s.newID()
	s.store(ctx, &res, artifacts.ReportKey(res.ID), []byte(res.Artifact), "text/markdown; charset=utf-8")
	return res, nil
}

// RunFollowUp answers a question about a prior report.
func (s *Service) RunFollowUp(ctx context.Context, req models.FollowUpRequest) (models.StepResult, error) {
	if err := req.Validate(); err != nil {
		return models.StepResult{}, err
	}

	start := time.Now()
	step := s.research.FollowUp(ctx, req.Topic, req.PriorReport, req.Question)

	res := models.PipelineResult{
		ID:       s.newID(),
		Kind:     models.KindFollowUp,
		Steps:    []models.StepResult{step},
		Artifact: step.Output,
		Status:   models.OverallStatus([]models.StepResult{step}),
		Metadata: models.Metadata{
			Subject:    req.Question,
			Mode:       models.KindFollowUp,
			Timestamp:  start,
			ModelsUsed: models.ModelsUsed([]models.StepResult{step}),
			Elapsed:    time.Since(start),
		},
	}
	s.store(ctx, &res, "", nil, "")
	return step, nil
}

// FollowUpQuestions suggests questions about a report. It never fails on
// backend errors; the default list is returned instead.
func (s *Service) FollowUpQuestions(ctx context.Context, topic, report string) ([]string, error) {
	if strings.TrimSpace(report) == "" {
		return nil, fmt.Errorf("%w: report is required", models.ErrInvalidInput)
	}
	questions, step := s.research.FollowUpQuestions(ctx, topic, report)
	if !step.OK() {
		s.logger.Warnf("follow-up questions degraded: %s", step.Diagnostic)
	}
	return questions, nil
}

// RunImageGeneration produces one image. Result.Image is always a PNG.
func (s *Service) RunImageGeneration(ctx context.Context, req models.ImageRequest) (models.PipelineResult, error) {
	return s.RunImageGenerationObserved(ctx, req, nil)
}

// RunImageGenerationObserved is RunImageGeneration with a per-step callback.
func (s *Service) RunImageGenerationObserved(ctx context.Context, req models.ImageRequest, observe Observer) (models.PipelineResult, error) {
	if err := req.Validate(); err != nil {
		return models.PipelineResult{}, err
	}

	res := s.images.Run(ctx, req, imagegen.Observer(observe))
	res.ID = s.newID()
	s.store(ctx, &res, artifacts.ImageKey(res.ID), res.Image, "image/png")
	return res, nil
}

// RefinePrompt rewrites prompt for image generation. On total failure it
// returns the prompt with leading command phrases removed.
func (s *Service) RefinePrompt(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", models.ErrInvalidInput)
	}
	step := s.images.Refine(ctx, prompt)
	if !step.OK() {
		s.logger.Warnf("prompt refinement degraded: %s", step.Diagnostic)
	}
	return step.Output, nil
}

// GetRun loads a stored run.
func (s *Service) GetRun(ctx context.Context, id string) (models.PipelineResult, error) {
	if s.history == nil {
		return models.PipelineResult{}, fmt.Errorf("%w: history is disabled", ErrNotFound)
	}
	res, err := s.history.GetRun(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		return models.PipelineResult{}, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return res, err
}

// ListRuns lists stored runs, most recent first. It returns an empty list
// when history is disabled.
func (s *Service) ListRuns(ctx context.Context, opts history.ListOptions) ([]history.RunSummary, error) {
	if s.history == nil {
		return []history.RunSummary{}, nil
	}
	return s.history.ListRuns(ctx, opts)
}

// store writes the artifact and the history row. Failures are logged and
// never change the result returned to the caller, apart from Location.
func (s *Service) store(ctx context.Context, res *models.PipelineResult, key string, data []byte, contentType string) {
	// Persist even when the request context has just been cancelled.
	ctx = context.WithoutCancel(ctx)

	if s.artifacts != nil && key != "" && len(data) > 0 {
		loc, err := s.artifacts.Put(ctx, key, data, contentType)
		if err != nil {
			s.logger.Warnf("%s %s: failed to store artifact: %v", res.Kind, res.ID, err)
		} else {
			res.Metadata.Location = loc
		}
	}

	if s.history != nil {
		if err := s.history.SaveRun(ctx, *res); err != nil {
			s.logger.Warnf("%s %s: failed to save history: %v", res.Kind, res.ID, err)
		}
	}

	if s.runLog != nil {
		if err := s.runLog.LogPipelineRun(*res); err != nil {
			s.logger.Warnf("%s %s: %v", res.Kind, res.ID, err)
		}
	}

	if sl, ok := s.logger.(logger.SummaryLogger); ok {
		sl.LogPipelineSummary(*res)
		return
	}
	s.logger.Infof("%s %s finished %s in %s", res.Kind, res.ID, res.Status, res.Metadata.Elapsed.Round(time.Millisecond))
}

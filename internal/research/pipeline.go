// Package research sequences research steps into a final report.
//
// Steps run strictly in order. Each step's prompt is rendered from earlier
// outputs, degraded outputs included, so a failing step never stops the
// pipeline. A wall-clock budget bounds the whole run; when it runs out the
// remaining steps are skipped and the report is composed locally.
package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/priyansh1913/open-deep-research-web/internal/config"
	"github.com/priyansh1913/open-deep-research-web/internal/executor"
	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// StepRunner executes one named step. *executor.Executor implements it.
type StepRunner interface {
	Execute(ctx context.Context, step string, candidates []models.BackendCandidate, payload invoker.Payload, opts ...executor.Option) models.StepResult
}

// Observer is called after every step, including the synthesized finalize step.
type Observer func(models.StepResult)

// Pipeline runs research and follow-up requests.
type Pipeline struct {
	runner    StepRunner
	cfg       *config.Config
	templates *Templates
	logger    logger.Logger
}

// New creates a Pipeline from cfg. Prompt overrides come from cfg.Research.Templates.
func New(runner StepRunner, cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	tmpl, err := NewTemplates(cfg.Research.Templates)
	if err != nil {
		return nil, err
	}
	for name, mode := range cfg.Research.Modes {
		for _, step := range mode.Steps {
			if !tmpl.Has(name, step) {
				return nil, fmt.Errorf("research.modes.%s: no prompt template for step %q", name, step)
			}
		}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Pipeline{runner: runner, cfg: cfg, templates: tmpl, logger: log}, nil
}

// run is the mutable state of one Run call.
type run struct {
	topic    string
	mode     string
	start    time.Time
	steps    []models.StepResult
	outputs  map[string]string
	observe  Observer
	once     sync.Once
	result   models.PipelineResult
	pipeline *Pipeline
}

func (r *run) record(res models.StepResult) {
	r.steps = append(r.steps, res)
	r.outputs[res.Step] = res.Output
	if r.observe != nil {
		r.observe(res)
	}
}

func (r *run) data() TemplateData {
	research := r.outputs[models.StepInitialResearch]
	if research == "" {
		research = r.outputs[models.StepMainResearch]
	}
	return TemplateData{
		Topic:     r.topic,
		Research:  research,
		FactCheck: r.outputs[models.StepFactCheck],
		Analysis:  r.outputs[models.StepAnalysis],
		Insights:  r.outputs[models.StepInsights],
		Summary:   r.outputs[models.StepSummarize],
		Outputs:   r.outputs,
	}
}

// Run executes the research mode selected by fast. It always returns a
// result with at least one step.
func (p *Pipeline) Run(ctx context.Context, topic string, fast bool, observe Observer) models.PipelineResult {
	modeName := models.ModeComprehensive
	if fast {
		modeName = models.ModeFast
	}
	mode, _ := p.cfg.Mode(modeName)

	r := &run{
		topic:    topic,
		mode:     modeName,
		start:    time.Now(),
		outputs:  make(map[string]string),
		observe:  observe,
		pipeline: p,
	}

	budgetCtx := ctx
	cancel := context.CancelFunc(func() {})
	if mode.Budget > 0 {
		budgetCtx, cancel = context.WithTimeout(ctx, mode.Budget)
	}
	defer cancel()

	p.logger.Infof("research %q (%s): %d steps, budget %s", topic, modeName, len(mode.Steps), mode.Budget)

	for i, step := range mode.Steps {
		if budgetCtx.Err() != nil {
			return r.finalize(step, mode.Budget, mode.Steps[i:])
		}

		res := p.runStep(budgetCtx, r, step)
		r.record(res)

		if budgetCtx.Err() != nil {
			return r.finalize(step, mode.Budget, mode.Steps[i+1:])
		}
	}

	if len(r.steps) == 0 {
		// No steps configured for the mode.
		return r.finalize("", mode.Budget, nil)
	}
	return r.complete()
}

func (p *Pipeline) runStep(ctx context.Context, r *run, step string) models.StepResult {
	prompt, err := p.templates.Render(r.mode, step, r.data())
	if err != nil {
		return models.StepResult{
			Step:       step,
			Output:     executor.FallbackMessage(step),
			Status:     models.StatusDegraded,
			Diagnostic: executor.NewStepError(step, "prompt rendering failed", err).Error(),
		}
	}

	var opts []executor.Option
	if step == models.StepCompile {
		opts = append(opts, executor.WithFallback(LocalReport(r.topic, r.outputs)))
	}
	return p.runner.Execute(ctx, step, p.cfg.Candidates(step), invoker.Payload{Prompt: prompt}, opts...)
}

// artifact composes the report from the outputs so far.
func (r *run) artifact() string {
	if compiled, ok := r.outputs[models.StepCompile]; ok && compiled != "" {
		return compiled
	}
	if _, ok := r.outputs[models.StepInitialResearch]; ok || r.mode == models.ModeComprehensive {
		return LocalReport(r.topic, r.outputs)
	}
	return FastReport(r.topic, r.outputs[models.StepSummarize], r.outputs[models.StepMainResearch])
}

func (r *run) complete() models.PipelineResult {
	r.once.Do(func() {
		r.result = r.build(r.artifact(), false)
	})
	return r.result
}

// finalize appends the synthesized finalize step for a run cut short by its budget.
func (r *run) finalize(current string, budget time.Duration, skipped []string) models.PipelineResult {
	r.once.Do(func() {
		artifact := r.artifact()
		timeoutErr := executor.NewTimeoutError(current, budget)
		if len(skipped) > 0 {
			timeoutErr.Context = "skipped " + strings.Join(skipped, ", ")
		}
		diag := timeoutErr.Error()
		if current == "" {
			diag = "no steps configured for mode " + r.mode
		}
		fin := models.StepResult{
			Step:       models.StepFinalize,
			Output:     artifact,
			Status:     models.StatusDegraded,
			Diagnostic: diag,
			Elapsed:    time.Since(r.start),
		}
		r.record(fin)
		r.pipeline.logger.Warnf("research %q: %s", r.topic, diag)
		r.result = r.build(artifact, current != "")
	})
	return r.result
}

func (r *run) build(artifact string, truncated bool) models.PipelineResult {
	if notice := DegradedNotice(r.steps); notice != "" {
		artifact = strings.TrimRight(artifact, "\n") + "\n\n" + notice + "\n"
	}
	return models.PipelineResult{
		Kind:     models.KindResearch,
		Steps:    r.steps,
		Artifact: artifact,
		Status:   models.OverallStatus(r.steps),
		Metadata: models.Metadata{
			Subject:    r.topic,
			Mode:       r.mode,
			Timestamp:  r.start,
			ModelsUsed: models.ModelsUsed(r.steps),
			Elapsed:    time.Since(r.start),
			Truncated:  truncated,
		},
	}
}

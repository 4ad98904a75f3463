// Package imagegen turns an image request into a PNG, degrading step by
// step under memory pressure instead of failing.
//
// The ladder is generate, then one reduced retry on out-of-memory, then one
// CPU attempt when an accelerator was in use. Whatever happens the run ends
// with a finalize step that returns either the generated image or a
// rendered placeholder.
package imagegen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/priyansh1913/open-deep-research-web/internal/config"
	"github.com/priyansh1913/open-deep-research-web/internal/executor"
	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
	"github.com/priyansh1913/open-deep-research-web/internal/placeholder"
	"github.com/priyansh1913/open-deep-research-web/internal/probe"
)

const maxErrorSummary = 400

// StepRunner executes one named step. *executor.Executor implements it.
type StepRunner interface {
	Execute(ctx context.Context, step string, candidates []models.BackendCandidate, payload invoker.Payload, opts ...executor.Option) models.StepResult
}

// DeviceProber reports device capability and scopes accelerator use.
// *probe.Probe implements it.
type DeviceProber interface {
	Probe(ctx context.Context) models.DeviceState
	Acquire(ctx context.Context, releaser probe.Releaser) *probe.Lease
}

// ReleaserSource looks up a provider's memory-release hook. *invoker.Invoker implements it.
type ReleaserSource interface {
	Releaser(provider string) invoker.MemoryReleaser
}

// RenderFunc draws the placeholder image.
type RenderFunc func(prompt, errSummary string, width, height int) []byte

// Observer is called after every recorded step.
type Observer func(models.StepResult)

// Pipeline runs image requests. It holds no per-request state.
type Pipeline struct {
	runner    StepRunner
	prober    DeviceProber
	releasers ReleaserSource
	cfg       *config.Config
	render    RenderFunc
	logger    logger.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRenderer replaces the placeholder renderer.
func WithRenderer(fn RenderFunc) Option {
	return func(p *Pipeline) {
		p.render = fn
	}
}

// New creates a Pipeline. releasers may be nil.
func New(runner StepRunner, prober DeviceProber, releasers ReleaserSource, cfg *config.Config, log logger.Logger, opts ...Option) *Pipeline {
	if runner == nil || prober == nil || cfg == nil {
		panic("imagegen: nil dependency")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	p := &Pipeline{
		runner:    runner,
		prober:    prober,
		releasers: releasers,
		cfg:       cfg,
		render:    placeholder.Render,
		logger:    log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) thresholds() Thresholds {
	return Thresholds{
		LowMemoryGB: p.cfg.DeviceThresholds.LowMemoryGB,
		CPUMaxSteps: p.cfg.DeviceThresholds.CPUMaxSteps,
	}
}

// withConfigDefaults fills zero request fields from the image config.
func (p *Pipeline) withConfigDefaults(req models.ImageRequest) models.ImageRequest {
	img := p.cfg.Image
	if req.Width == 0 {
		req.Width = img.Width
	}
	if req.Height == 0 {
		req.Height = img.Height
	}
	if req.Steps == 0 {
		req.Steps = img.Steps
	}
	if req.Guidance == 0 {
		req.Guidance = img.Guidance
	}
	return req.WithDefaults()
}

// imageRun is the mutable state of one Run call.
type imageRun struct {
	start   time.Time
	steps   []models.StepResult
	observe Observer
}

func (r *imageRun) record(res models.StepResult) models.StepResult {
	r.steps = append(r.steps, res)
	if r.observe != nil {
		r.observe(res)
	}
	return res
}

// Run generates one image for req. It always returns a result whose last
// step is finalize and whose Image holds PNG bytes.
func (p *Pipeline) Run(ctx context.Context, req models.ImageRequest, observe Observer) models.PipelineResult {
	r := &imageRun{start: time.Now(), observe: observe}
	req = p.withConfigDefaults(req)

	budgetCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.cfg.Image.Budget > 0 {
		budgetCtx, cancel = context.WithTimeout(ctx, p.cfg.Image.Budget)
	}
	defer cancel()

	prompt := strings.TrimSpace(req.Prompt)
	if req.Refine {
		prompt = r.record(p.Refine(budgetCtx, prompt)).Output
	}

	optimized := OptimizePrompt(prompt, p.cfg.TokenBudget)
	opt := models.StepResult{
		Step:    models.StepOptimizePrompt,
		Output:  optimized,
		Status:  models.StatusOk,
		Elapsed: time.Since(r.start),
	}
	if before, after := EstimateTokens(prompt), EstimateTokens(optimized); before != after {
		opt.Diagnostic = fmt.Sprintf("prompt shortened from %d to %d tokens (budget %d)", before, after, p.cfg.TokenBudget)
		p.logger.Infof("image: %s", opt.Diagnostic)
	}
	r.record(opt)

	selStart := time.Now()
	device := p.prober.Probe(budgetCtx)
	params := SelectParameters(device, req, p.thresholds(), p.cfg.Image.Seed)
	r.record(models.StepResult{
		Step:       models.StepSelectParams,
		Output:     params.String(),
		Status:     models.StatusOk,
		Diagnostic: "device " + device.String(),
		Elapsed:    time.Since(selStart),
	})

	candidates := p.cfg.Candidates(models.StepGenerate)
	payload := func(pr Params) invoker.Payload {
		return invoker.Payload{
			Kind:           invoker.PayloadImage,
			Prompt:         optimized,
			NegativePrompt: req.NegativePrompt,
			Width:          pr.Width,
			Height:         pr.Height,
			Steps:          pr.Steps,
			Guidance:       pr.Guidance,
			Seed:           pr.Seed,
		}
	}

	res := r.record(p.attempt(budgetCtx, models.StepGenerate, candidates, payload(params)))

	if !res.OK() && res.Failure == models.FailureResourceExhausted && budgetCtx.Err() == nil {
		reduced := params.Reduced()
		p.logger.Warnf("image: out of memory, retrying with %s", reduced)
		res = r.record(p.attempt(budgetCtx, models.StepReduceAndRetry, candidates, payload(reduced)))

		if !res.OK() && device.IsAccelerated() && budgetCtx.Err() == nil {
			cpu := params.ForCPU(p.thresholds())
			p.logger.Warnf("image: reduced retry failed, falling back to CPU with %s", cpu)
			res = r.record(p.attempt(budgetCtx, models.StepCPURetry, cpuCandidates(candidates), payload(cpu)))
		}
	}

	return p.finalize(r, req, optimized, device, res, budgetCtx.Err() != nil && ctx.Err() == nil)
}

// attempt runs one generation step under an accelerator lease.
func (p *Pipeline) attempt(ctx context.Context, step string, candidates []models.BackendCandidate, payload invoker.Payload) models.StepResult {
	var releaser probe.Releaser
	if p.releasers != nil && len(candidates) > 0 {
		releaser = p.releasers.Releaser(candidates[0].Provider)
	}
	lease := p.prober.Acquire(ctx, releaser)
	defer lease.Release()

	return p.runner.Execute(ctx, step, candidates, payload)
}

// cpuCandidates returns the first CPU-pinned candidate, or all candidates
// when none is pinned.
func cpuCandidates(candidates []models.BackendCandidate) []models.BackendCandidate {
	for _, c := range candidates {
		if c.IsCPU() {
			return []models.BackendCandidate{c}
		}
	}
	return candidates
}

func (p *Pipeline) finalize(r *imageRun, req models.ImageRequest, prompt string, device models.DeviceState, last models.StepResult, truncated bool) models.PipelineResult {
	fin := models.StepResult{
		Step:   models.StepFinalize,
		Output: prompt,
		Status: models.StatusOk,
	}

	var image []byte
	if last.OK() && len(last.Image) > 0 {
		image = last.Image
		fin.Candidate = last.Candidate
	} else {
		summary := errorSummary(last)
		if truncated {
			summary = executor.NewTimeoutError(last.Step, p.cfg.Image.Budget).Error()
		}
		image = p.render(prompt, summary, req.Width, req.Height)
		if len(image) == 0 {
			image = placeholder.Blank(req.Width, req.Height)
		}
		fin.Status = models.StatusDegraded
		fin.Diagnostic = "placeholder image: " + summary
		p.logger.Warnf("image: returning placeholder: %s", summary)
	}
	fin.Elapsed = time.Since(r.start)
	r.record(fin)

	return models.PipelineResult{
		Kind:     models.KindImage,
		Steps:    r.steps,
		Artifact: prompt,
		Image:    image,
		Status:   models.OverallStatus(r.steps),
		Metadata: models.Metadata{
			Subject:    req.Prompt,
			Mode:       string(device.Kind),
			Timestamp:  r.start,
			ModelsUsed: models.ModelsUsed(r.steps),
			Elapsed:    time.Since(r.start),
			Truncated:  truncated,
			Device:     &device,
		},
	}
}

// errorSummary describes a failed attempt for the placeholder.
func errorSummary(res models.StepResult) string {
	var msg string
	switch {
	case res.Diagnostic != "":
		msg = res.Diagnostic
	case res.OK():
		msg = "the backend returned no image"
	default:
		msg = res.Step + " did not complete"
	}
	if res.Failure == models.FailureResourceExhausted {
		msg = "out of memory: " + msg
	}
	if r := []rune(msg); len(r) > maxErrorSummary {
		msg = string(r[:maxErrorSummary]) + "..."
	}
	return msg
}

// Package executor runs one named pipeline step by walking its ranked
// candidate list until a backend produces usable output.
//
// Execute never returns an error and never reports StatusFailed: when no
// candidate succeeds the step degrades to a deterministic fallback and
// records what was tried.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// TimeoutPolicy supplies the per-call timeout for a step. *config.Config implements it.
type TimeoutPolicy interface {
	Timeout(step string) time.Duration
}

// FixedTimeout applies the same timeout to every step.
type FixedTimeout time.Duration

func (f FixedTimeout) Timeout(string) time.Duration { return time.Duration(f) }

// Executor is stateless apart from its dependencies and safe for concurrent use.
type Executor struct {
	caller   invoker.Caller
	timeouts TimeoutPolicy
	logger   logger.Logger
}

// New creates an Executor. It panics on a nil caller.
func New(caller invoker.Caller, timeouts TimeoutPolicy, log logger.Logger) *Executor {
	if caller == nil {
		panic("executor: nil caller")
	}
	if timeouts == nil {
		timeouts = FixedTimeout(30 * time.Second)
	}
	return &Executor{caller: caller, timeouts: timeouts, logger: log}
}

type execOptions struct {
	fallback    string
	hasFallback bool
	timeout     time.Duration
}

// Option customizes a single Execute call.
type Option func(*execOptions)

// WithFallback overrides the degraded output text.
func WithFallback(text string) Option {
	return func(o *execOptions) {
		o.fallback = text
		o.hasFallback = true
	}
}

// WithTimeout overrides the per-call timeout from the policy.
func WithTimeout(d time.Duration) Option {
	return func(o *execOptions) {
		o.timeout = d
	}
}

// Execute runs step against candidates in rank order. The first usable
// output wins. A ResourceExhausted failure or a cancelled ctx stops the walk.
func (e *Executor) Execute(ctx context.Context, step string, candidates []models.BackendCandidate, payload invoker.Payload, opts ...Option) models.StepResult {
	o := execOptions{timeout: e.timeouts.Timeout(step)}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	ordered := models.SortByRank(candidates)
	tried := make([]string, 0, len(ordered))
	var errs []error
	lastKind := models.FailureNone
	message := "all candidates failed"

	if len(ordered) == 0 {
		message = "no candidates configured"
	}

	for _, c := range ordered {
		if err := ctx.Err(); err != nil {
			message = "cancelled"
			errs = append(errs, err)
			break
		}

		tried = append(tried, c.Label())
		out := e.caller.Invoke(ctx, c, payload, o.timeout)
		if out.OK {
			res := models.StepResult{
				Step:      step,
				Output:    out.Output.Text,
				Image:     out.Output.Image,
				Status:    models.StatusOk,
				Elapsed:   time.Since(start),
				Candidate: c.Label(),
				Tried:     tried,
			}
			GracefulDebug(e.logger, "%s", res.Summary())
			return res
		}

		lastKind = out.Kind
		errs = append(errs, out.Err)
		GracefulWarn(e.logger, "step %s: candidate %s failed (%s): %v", step, c.Label(), out.Kind, out.Err)

		if out.Kind == models.FailureResourceExhausted {
			message = "resource exhausted"
			break
		}
		if ctx.Err() != nil {
			message = "cancelled"
			break
		}
	}

	fallback := FallbackMessage(step)
	if o.hasFallback {
		fallback = o.fallback
	}

	stepErr := NewStepError(step, message, errors.Join(errs...))
	res := models.StepResult{
		Step:       step,
		Output:     fallback,
		Status:     models.StatusDegraded,
		Diagnostic: stepErr.Error(),
		Elapsed:    time.Since(start),
		Tried:      tried,
		Failure:    lastKind,
	}
	GracefulWarn(e.logger, "%s", res.Summary())
	return res
}


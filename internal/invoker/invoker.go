// Package invoker performs single generation calls against one backend
// candidate. Every call is bounded by a timeout and its output is validated
// before being reported as usable. Invoke never returns an error: failures
// come back as a tagged Outcome with a FailureKind.
package invoker

import (
	"context"
	"fmt"
	"time"

	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// DefaultSystemPrompt is sent with every text request that has no system prompt of its own.
const DefaultSystemPrompt = "You are a helpful, accurate research assistant."

// PayloadKind selects text or image generation.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadImage
)

// Payload is the backend-agnostic request for one generation call.
type Payload struct {
	Kind PayloadKind

	// Text generation
	System string
	Prompt string

	// Image generation
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	Guidance       float64
	Seed           int64
}

// IsImage reports whether p asks for an image.
func (p Payload) IsImage() bool {
	return p.Kind == PayloadImage
}

// Output is what a backend produced.
type Output struct {
	Text   string
	Image  []byte
	Model  string
	Cached bool
}

// Backend is one upstream generation service.
type Backend interface {
	Generate(ctx context.Context, candidate models.BackendCandidate, payload Payload) (Output, error)
}

// MemoryReleaser is implemented by backends that can free accelerator memory on demand.
type MemoryReleaser interface {
	ReleaseMemory(ctx context.Context) error
}

// Outcome is the tagged result of one Invoke call.
type Outcome struct {
	Output  Output
	OK      bool
	Kind    models.FailureKind
	Err     error
	Elapsed time.Duration
}

// Caller is the surface the step executor depends on.
type Caller interface {
	Invoke(ctx context.Context, candidate models.BackendCandidate, payload Payload, timeout time.Duration) Outcome
}

// Invoker dispatches calls to backends keyed by provider name.
// It is safe for concurrent use once constructed.
type Invoker struct {
	backends  map[string]Backend
	validator Validator
	cache     *Cache
	logger    logger.Logger
}

// New creates an Invoker. backends maps provider names (as referenced by
// candidates) to their clients. cache may be nil.
func New(backends map[string]Backend, validator Validator, cache *Cache, log logger.Logger) *Invoker {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	b := make(map[string]Backend, len(backends))
	for name, backend := range backends {
		b[name] = backend
	}
	return &Invoker{
		backends:  b,
		validator: validator,
		cache:     cache,
		logger:    log,
	}
}

// Releaser returns the memory-release hook of provider's backend, or nil.
func (inv *Invoker) Releaser(provider string) MemoryReleaser {
	if r, ok := inv.backends[provider].(MemoryReleaser); ok {
		return r
	}
	return nil
}

// Close releases the response cache, if any.
func (inv *Invoker) Close() error {
	if inv.cache == nil {
		return nil
	}
	return inv.cache.Close()
}

type callResult struct {
	out Output
	err error
}

// Invoke performs exactly one call to candidate with a strict timeout.
// A timeout <= 0 means the call is bounded only by ctx.
func (inv *Invoker) Invoke(ctx context.Context, candidate models.BackendCandidate, payload Payload, timeout time.Duration) Outcome {
	start := time.Now()
	fail := func(err error) Outcome {
		return Outcome{Kind: Classify(err), Err: err, Elapsed: time.Since(start)}
	}

	backend, ok := inv.backends[candidate.Provider]
	if !ok {
		return fail(&BackendError{
			Provider: candidate.Provider,
			Kind:     models.FailureFatal,
			Message:  "unknown provider",
		})
	}

	if payload.Kind == PayloadText && payload.System == "" {
		payload.System = DefaultSystemPrompt
	}

	var key string
	if inv.cache != nil {
		key = CacheKey(candidate, payload)
		if out, hit := inv.cache.Get(key); hit {
			inv.logger.Debugf("cache hit for %s", candidate.Label())
			return Outcome{Output: out, OK: true, Elapsed: time.Since(start)}
		}
	}

	callCtx := ctx
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	// Buffered so an abandoned call can still deliver and exit.
	ch := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- callResult{err: &BackendError{
					Provider: candidate.Provider,
					Kind:     models.FailureFatal,
					Message:  fmt.Sprintf("backend panic: %v", r),
				}}
			}
		}()
		out, err := backend.Generate(callCtx, candidate, payload)
		ch <- callResult{out: out, err: err}
	}()

	var res callResult
	select {
	case res = <-ch:
	case <-callCtx.Done():
		return fail(fmt.Errorf("%s: call abandoned after %s: %w", candidate.Label(), time.Since(start).Round(time.Millisecond), callCtx.Err()))
	}

	if res.err != nil {
		return fail(fmt.Errorf("%s: %w", candidate.Label(), res.err))
	}

	if err := inv.validator.Check(payload, res.out); err != nil {
		return fail(fmt.Errorf("%s: %w", candidate.Label(), err))
	}

	if res.out.Model == "" {
		res.out.Model = candidate.Model
	}
	if inv.cache != nil {
		if err := inv.cache.Put(key, res.out); err != nil {
			inv.logger.Warnf("cache write for %s failed: %v", candidate.Label(), err)
		}
	}

	return Outcome{Output: res.out, OK: true, Elapsed: time.Since(start)}
}

package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyansh1913/open-deep-research-web/internal/invoker"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// scriptedCaller returns canned outcomes per candidate ID and records call order.
type scriptedCaller struct {
	mu       sync.Mutex
	outcomes map[string]invoker.Outcome
	calls    []string
	timeouts []time.Duration
	onCall   func(id string)
}

func (s *scriptedCaller) Invoke(ctx context.Context, c models.BackendCandidate, p invoker.Payload, timeout time.Duration) invoker.Outcome {
	s.mu.Lock()
	s.calls = append(s.calls, c.ID)
	s.timeouts = append(s.timeouts, timeout)
	s.mu.Unlock()
	if s.onCall != nil {
		s.onCall(c.ID)
	}
	if out, ok := s.outcomes[c.ID]; ok {
		return out
	}
	return invoker.Outcome{Kind: models.FailureTransient, Err: errors.New(c.ID + ": no script")}
}

func ok(text string) invoker.Outcome {
	return invoker.Outcome{OK: true, Output: invoker.Output{Text: text}}
}

func fail(kind models.FailureKind, msg string) invoker.Outcome {
	return invoker.Outcome{Kind: kind, Err: errors.New(msg)}
}

func candidates(ids ...string) []models.BackendCandidate {
	out := make([]models.BackendCandidate, len(ids))
	for i, id := range ids {
		out[i] = models.BackendCandidate{ID: id, Provider: "p", Rank: i}
	}
	return out
}

func TestExecuteFirstSuccessWins(t *testing.T) {
	caller := &scriptedCaller{outcomes: map[string]invoker.Outcome{
		"a": fail(models.FailureTransient, "a: timeout"),
		"b": ok("answer from b"),
		"c": ok("answer from c"),
	}}
	ex := New(caller, FixedTimeout(time.Second), nil)

	res := ex.Execute(context.Background(), models.StepSummarize, candidates("a", "b", "c"), invoker.Payload{})

	assert.Equal(t, models.StatusOk, res.Status)
	assert.Equal(t, "answer from b", res.Output)
	assert.Equal(t, "b", res.Candidate)
	assert.Equal(t, []string{"a", "b"}, res.Tried)
	assert.Equal(t, []string{"a", "b"}, caller.calls)
}

func TestExecuteRespectsRank(t *testing.T) {
	caller := &scriptedCaller{outcomes: map[string]invoker.Outcome{
		"low":  ok("low rank wins"),
		"high": ok("high rank"),
	}}
	cands := []models.BackendCandidate{
		{ID: "high", Rank: 5},
		{ID: "low", Rank: 1},
	}

	res := New(caller, nil, nil).Execute(context.Background(), "x", cands, invoker.Payload{})

	assert.Equal(t, "low", res.Candidate)
	assert.Equal(t, []string{"low"}, caller.calls)
}

func TestExecuteExhaustion(t *testing.T) {
	tests := []struct {
		name         string
		step         string
		opts         []Option
		wantOutput   string
		wantContains string
	}{
		{
			name:       "step default fallback",
			step:       models.StepFactCheck,
			wantOutput: FallbackMessage(models.StepFactCheck),
		},
		{
			name:       "explicit fallback",
			step:       models.StepCompile,
			opts:       []Option{WithFallback("local report")},
			wantOutput: "local report",
		},
		{
			name:       "generic fallback names the step",
			step:       models.StepInsights,
			wantOutput: "The insights operation could not be completed due to technical issues.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &scriptedCaller{outcomes: map[string]invoker.Outcome{
				"a": fail(models.FailureTransient, "a: empty response"),
				"b": fail(models.FailureFatal, "b: unauthorized"),
			}}
			res := New(caller, nil, nil).Execute(context.Background(), tt.step, candidates("a", "b"), invoker.Payload{}, tt.opts...)

			assert.Equal(t, models.StatusDegraded, res.Status)
			assert.Equal(t, tt.wantOutput, res.Output)
			assert.NotEmpty(t, res.Output)
			assert.Equal(t, []string{"a", "b"}, res.Tried)
			assert.Equal(t, models.FailureFatal, res.Failure)
			assert.Contains(t, res.Diagnostic, "all candidates failed")
			assert.Contains(t, res.Diagnostic, "a: empty response")
			assert.Contains(t, res.Diagnostic, "b: unauthorized")
			assert.NotContains(t, res.Diagnostic, "\n")
		})
	}
}

func TestExecuteResourceExhaustedStopsWalk(t *testing.T) {
	caller := &scriptedCaller{outcomes: map[string]invoker.Outcome{
		"gpu":  fail(models.FailureResourceExhausted, "gpu: CUDA out of memory"),
		"next": ok("should not be called"),
	}}

	res := New(caller, nil, nil).Execute(context.Background(), models.StepGenerate, candidates("gpu", "next"), invoker.Payload{Kind: invoker.PayloadImage})

	assert.Equal(t, models.StatusDegraded, res.Status)
	assert.Equal(t, models.FailureResourceExhausted, res.Failure)
	assert.Equal(t, []string{"gpu"}, caller.calls)
	assert.Contains(t, res.Diagnostic, "resource exhausted")
	assert.Equal(t, FallbackMessage(models.StepGenerate), res.Output)
}

func TestExecuteEmptyCandidates(t *testing.T) {
	caller := &scriptedCaller{}
	res := New(caller, nil, nil).Execute(context.Background(), models.StepAnalysis, nil, invoker.Payload{})

	assert.Equal(t, models.StatusDegraded, res.Status)
	assert.Empty(t, res.Tried)
	assert.Contains(t, res.Diagnostic, "no candidates configured")
	assert.Equal(t, FallbackMessage(models.StepAnalysis), res.Output)
}

func TestExecuteCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	caller := &scriptedCaller{
		outcomes: map[string]invoker.Outcome{"a": fail(models.FailureTransient, "a: cancelled")},
		onCall:   func(string) { cancel() },
	}

	res := New(caller, nil, nil).Execute(ctx, models.StepSummarize, candidates("a", "b", "c"), invoker.Payload{})

	assert.Equal(t, models.StatusDegraded, res.Status)
	assert.Equal(t, []string{"a"}, caller.calls)
	assert.True(t, strings.Contains(res.Diagnostic, "cancelled"))
}

func TestExecuteAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	caller := &scriptedCaller{}
	res := New(caller, nil, nil).Execute(ctx, models.StepSummarize, candidates("a"), invoker.Payload{})

	assert.Equal(t, models.StatusDegraded, res.Status)
	assert.Empty(t, caller.calls)
	assert.Contains(t, res.Diagnostic, "cancelled")
}

type stepTimeouts map[string]time.Duration

func (s stepTimeouts) Timeout(step string) time.Duration { return s[step] }

func TestExecuteTimeouts(t *testing.T) {
	caller := &scriptedCaller{outcomes: map[string]invoker.Outcome{"a": ok("fine")}}
	ex := New(caller, stepTimeouts{models.StepCompile: 45 * time.Second}, nil)

	ex.Execute(context.Background(), models.StepCompile, candidates("a"), invoker.Payload{})
	ex.Execute(context.Background(), models.StepCompile, candidates("a"), invoker.Payload{}, WithTimeout(time.Second))

	require.Len(t, caller.timeouts, 2)
	assert.Equal(t, 45*time.Second, caller.timeouts[0])
	assert.Equal(t, time.Second, caller.timeouts[1])
}

func TestExecuteNeverFails(t *testing.T) {
	for _, kind := range []models.FailureKind{models.FailureTransient, models.FailureFatal, models.FailureResourceExhausted} {
		t.Run(kind.String(), func(t *testing.T) {
			caller := &scriptedCaller{outcomes: map[string]invoker.Outcome{"a": fail(kind, "boom")}}
			res := New(caller, nil, nil).Execute(context.Background(), models.StepMainResearch, candidates("a"), invoker.Payload{})
			assert.NotEqual(t, models.StatusFailed, res.Status)
			assert.NotEmpty(t, res.Output)
		})
	}
}

func TestNewPanicsOnNilCaller(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil, nil) })
}

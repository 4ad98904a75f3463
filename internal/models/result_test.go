package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepResult
		want  StepStatus
	}{
		{name: "no steps", steps: nil, want: StatusFailed},
		{name: "all ok", steps: []StepResult{{Status: StatusOk}, {Status: StatusOk}}, want: StatusOk},
		{name: "one degraded", steps: []StepResult{{Status: StatusOk}, {Status: StatusDegraded}}, want: StatusDegraded},
		{name: "failed counts as degraded", steps: []StepResult{{Status: StatusFailed}}, want: StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallStatus(tt.steps); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModelsUsed(t *testing.T) {
	steps := []StepResult{
		{Step: "a", Status: StatusOk, Candidate: "m1"},
		{Step: "b", Status: StatusDegraded, Candidate: ""},
		{Step: "c", Status: StatusOk, Candidate: "m2"},
		{Step: "d", Status: StatusOk, Candidate: "m1"},
	}
	assert.Equal(t, []string{"m1", "m2"}, ModelsUsed(steps))
	assert.Equal(t, []string{}, ModelsUsed(nil))
}

func TestPipelineResultStep(t *testing.T) {
	res := PipelineResult{Steps: []StepResult{
		{Step: StepGenerate, Status: StatusDegraded},
		{Step: StepGenerate, Status: StatusOk},
	}}

	got, ok := res.Step(StepGenerate)
	assert.True(t, ok)
	assert.Equal(t, StatusOk, got.Status)

	_, ok = res.Step(StepCompile)
	assert.False(t, ok)
}

func TestStepResultSummary(t *testing.T) {
	r := StepResult{Step: StepSummarize, Status: StatusOk, Elapsed: 1500 * time.Millisecond, Candidate: "mistral"}
	assert.Equal(t, "summarize: ok in 1.5s via mistral", r.Summary())
}

func TestSortByRank(t *testing.T) {
	in := []BackendCandidate{{ID: "c", Rank: 2}, {ID: "a", Rank: 0}, {ID: "b", Rank: 0}}
	out := SortByRank(in)

	var ids []string
	for _, c := range out {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "c", in[0].ID, "input must not be reordered")
}

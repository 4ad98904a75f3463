package models

import "time"

// Research modes.
const (
	ModeFast          = "fast"
	ModeComprehensive = "comprehensive"
)

// Pipeline kinds.
const (
	KindResearch = "research"
	KindFollowUp = "follow_up"
	KindImage    = "image"
)

// Metadata describes how a PipelineResult was produced.
type Metadata struct {
	Subject    string        `json:"topic"` // Research topic or image prompt
	Mode       string        `json:"mode"`
	Timestamp  time.Time     `json:"timestamp"`
	ModelsUsed []string      `json:"models_used"`
	Elapsed    time.Duration `json:"elapsed"`
	Truncated  bool          `json:"truncated,omitempty"` // Wall-clock budget cut the run short
	Device     *DeviceState  `json:"device,omitempty"`
	Location   string        `json:"location,omitempty"` // Where the artifact was stored, if anywhere
}

// PipelineResult aggregates the ordered step history and the final artifact.
// It always holds at least one StepResult.
type PipelineResult struct {
	ID       string       `json:"id"`
	Kind     string       `json:"kind"`
	Steps    []StepResult `json:"steps"`
	Artifact string       `json:"artifact"`        // Report text, or the final prompt for images
	Image    []byte       `json:"-"`               // PNG bytes for image results
	Status   StepStatus   `json:"status"`
	Metadata Metadata     `json:"metadata"`
}

// Degraded reports whether any part of the result came from a fallback path.
func (p PipelineResult) Degraded() bool {
	return p.Status != StatusOk
}

// Step returns the last StepResult recorded under name.
func (p PipelineResult) Step(name string) (StepResult, bool) {
	for i := len(p.Steps) - 1; i >= 0; i-- {
		if p.Steps[i].Step == name {
			return p.Steps[i], true
		}
	}
	return StepResult{}, false
}

// OverallStatus folds step statuses: Ok only when every step is Ok.
func OverallStatus(steps []StepResult) StepStatus {
	if len(steps) == 0 {
		return StatusFailed
	}
	for _, s := range steps {
		if s.Status != StatusOk {
			return StatusDegraded
		}
	}
	return StatusOk
}

// ModelsUsed returns the distinct candidate IDs that produced Ok steps, in order.
func ModelsUsed(steps []StepResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range steps {
		if s.Status != StatusOk || s.Candidate == "" || seen[s.Candidate] {
			continue
		}
		seen[s.Candidate] = true
		out = append(out, s.Candidate)
	}
	if out == nil {
		out = []string{}
	}
	return out
}

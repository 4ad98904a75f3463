package models

import (
	"fmt"
	"strings"
	"time"
)

// Step names used by the research and image pipelines.
// Research step composition is configurable; these are the names the
// built-in templates and fallback messages know about.
const (
	StepMainResearch    = "main_research"
	StepInitialResearch = "initial_research"
	StepFactCheck       = "fact_check"
	StepAnalysis        = "analysis"
	StepInsights        = "insights"
	StepSummarize       = "summarize"
	StepCompile         = "compile"
	StepFollowUp        = "follow_up"
	StepFollowUpQs      = "follow_up_questions"
	StepRefinePrompt    = "refine_prompt"
	StepOptimizePrompt  = "optimize_prompt"
	StepSelectParams    = "select_parameters"
	StepGenerate        = "generate"
	StepReduceAndRetry  = "reduce_and_retry"
	StepCPURetry        = "cpu_retry"
	StepFinalize        = "finalize"
)

// StepStatus is the tagged outcome of a single pipeline step.
type StepStatus string

const (
	StatusOk       StepStatus = "ok"       // Primary generation path succeeded
	StatusDegraded StepStatus = "degraded" // Fallback or placeholder output
	StatusFailed   StepStatus = "failed"   // Step produced nothing usable
)

// IsValid reports whether s is one of the known statuses.
func (s StepStatus) IsValid() bool {
	switch s {
	case StatusOk, StatusDegraded, StatusFailed:
		return true
	}
	return false
}

// StepResult is the immutable record of one executed step.
type StepResult struct {
	Step       string        `json:"step"`
	Output     string        `json:"output,omitempty"`
	Image      []byte        `json:"-"`
	Status     StepStatus    `json:"status"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Candidate  string        `json:"candidate,omitempty"` // ID of the candidate that produced Output
	Tried      []string      `json:"tried,omitempty"`     // Candidate IDs attempted, in order
	Failure    FailureKind   `json:"failure,omitempty"`   // Last failure kind when not Ok
}

// OK reports whether the step succeeded on the primary path.
func (r StepResult) OK() bool {
	return r.Status == StatusOk
}

// Summary returns a one-line description suitable for logs.
func (r StepResult) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s in %s", r.Step, r.Status, r.Elapsed.Round(time.Millisecond))
	if r.Candidate != "" {
		fmt.Fprintf(&sb, " via %s", r.Candidate)
	}
	if r.Diagnostic != "" {
		fmt.Fprintf(&sb, " (%s)", r.Diagnostic)
	}
	return sb.String()
}

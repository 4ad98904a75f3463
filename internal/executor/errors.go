package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StepError records why a step fell back to degraded output.
type StepError struct {
	Step      string    // Step name
	Message   string    // Human-readable summary
	Err       error     // Underlying error, often an errors.Join of candidate failures
	Timestamp time.Time // When the step gave up
}

// NewStepError creates a StepError with the current timestamp.
func NewStepError(step, msg string, err error) *StepError {
	return &StepError{
		Step:      step,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

func (e *StepError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("step %s: %s", e.Step, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", strings.ReplaceAll(e.Err.Error(), "\n", "; ")))
	}
	return sb.String()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a wall-clock budget ran out.
type TimeoutError struct {
	Step            string        // Step that was running or about to run
	TimeoutDuration time.Duration // Budget that was exceeded
	Context         string        // What was skipped (optional)
	Timestamp       time.Time
}

// NewTimeoutError creates a TimeoutError with the current timestamp.
func NewTimeoutError(step string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		Step:            step,
		TimeoutDuration: duration,
		Timestamp:       time.Now(),
	}
}

func (e *TimeoutError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("step %s: budget of %v exceeded", e.Step, e.TimeoutDuration))
	if e.Context != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Context))
	}
	return sb.String()
}

// Unwrap returns context.DeadlineExceeded to support error wrapping.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsStepError checks if the error is or wraps a StepError.
func IsStepError(err error) bool {
	if err == nil {
		return false
	}
	var se *StepError
	return errors.As(err, &se)
}

// IsTimeoutError checks if the error is or wraps a TimeoutError or context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

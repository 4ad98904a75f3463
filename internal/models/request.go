package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks caller input errors. They are rejected before any
// pipeline step runs and are never retried.
var ErrInvalidInput = errors.New("invalid input")

// Image request defaults applied when a field is left zero.
const (
	DefaultImageHeight   = 512
	DefaultImageWidth    = 512
	DefaultImageSteps    = 30
	DefaultImageGuidance = 7.5
)

// ResearchRequest asks for a research report on Topic.
type ResearchRequest struct {
	Topic string `json:"topic"`
	Fast  bool   `json:"fast_mode"`
}

// Validate rejects empty topics.
func (r ResearchRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	return nil
}

// Mode returns "fast" or "comprehensive".
func (r ResearchRequest) Mode() string {
	if r.Fast {
		return ModeFast
	}
	return ModeComprehensive
}

// FollowUpRequest asks a question about a previously generated report.
type FollowUpRequest struct {
	Topic       string `json:"originalTopic,omitempty"`
	PriorReport string `json:"originalReport"`
	Question    string `json:"question"`
}

// Validate requires both the prior report and the question.
func (r FollowUpRequest) Validate() error {
	if strings.TrimSpace(r.PriorReport) == "" {
		return fmt.Errorf("%w: no original report provided for context", ErrInvalidInput)
	}
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	return nil
}

// ImageRequest asks for one generated image.
type ImageRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Height         int     `json:"height,omitempty"`
	Width          int     `json:"width,omitempty"`
	Steps          int     `json:"num_inference_steps,omitempty"`
	Guidance       float64 `json:"guidance_scale,omitempty"`
	Refine         bool    `json:"refine,omitempty"`
}

// Validate rejects empty prompts and negative dimensions.
func (r ImageRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if r.Height < 0 || r.Width < 0 || r.Steps < 0 || r.Guidance < 0 {
		return fmt.Errorf("%w: dimensions, steps and guidance must be >= 0", ErrInvalidInput)
	}
	return nil
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (r ImageRequest) WithDefaults() ImageRequest {
	if r.Height == 0 {
		r.Height = DefaultImageHeight
	}
	if r.Width == 0 {
		r.Width = DefaultImageWidth
	}
	if r.Steps == 0 {
		r.Steps = DefaultImageSteps
	}
	if r.Guidance == 0 {
		r.Guidance = DefaultImageGuidance
	}
	return r
}

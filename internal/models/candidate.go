package models

import "sort"

// Device hints for image candidates.
const (
	DeviceAccelerated = "accelerated"
	DeviceCPU         = "cpu"
)

// BackendCandidate is one backend/model configuration eligible to satisfy a step.
type BackendCandidate struct {
	ID          string  `yaml:"id" json:"id"`
	Provider    string  `yaml:"provider" json:"provider"`
	Model       string  `yaml:"model" json:"model"`
	Rank        int     `yaml:"rank" json:"rank"`
	Temperature float64 `yaml:"temperature" json:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens,omitempty"`
	TopP        float64 `yaml:"top_p" json:"top_p,omitempty"`
	Device      string  `yaml:"device" json:"device,omitempty"`
}

// Label returns the candidate ID, falling back to provider/model.
func (c BackendCandidate) Label() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Provider + "/" + c.Model
}

// IsCPU reports whether the candidate is pinned to CPU execution.
func (c BackendCandidate) IsCPU() bool {
	return c.Device == DeviceCPU
}

// SortByRank returns a copy of candidates ordered by ascending Rank.
// Candidates with equal rank keep their configured order.
func SortByRank(candidates []BackendCandidate) []BackendCandidate {
	out := make([]BackendCandidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rank < out[j].Rank
	})
	return out
}

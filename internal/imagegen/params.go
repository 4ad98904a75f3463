package imagegen

import (
	"fmt"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// Resolution and step caps applied under resource pressure.
const (
	LowMemoryMaxSide  = 512
	LowMemoryMaxSteps = 20
	ReducedMaxSide    = 384
	ReducedMaxSteps   = 10
	DefaultCPUSteps   = 15
)

// Params are the concrete generation parameters for one attempt.
type Params struct {
	Width    int
	Height   int
	Steps    int
	Guidance float64
	Seed     int64
}

func (p Params) String() string {
	return fmt.Sprintf("%dx%d, %d steps, guidance %.1f, seed %d", p.Width, p.Height, p.Steps, p.Guidance, p.Seed)
}

// Thresholds drive device-aware parameter selection.
type Thresholds struct {
	LowMemoryGB float64
	CPUMaxSteps int
}

func (t Thresholds) cpuMaxSteps() int {
	if t.CPUMaxSteps > 0 {
		return t.CPUMaxSteps
	}
	return DefaultCPUSteps
}

// SelectParameters derives attempt parameters from the request and device.
// CPU-only devices get fewer steps; low-memory accelerators get a smaller
// canvas and fewer steps.
func SelectParameters(device models.DeviceState, req models.ImageRequest, th Thresholds, seed int64) Params {
	req = req.WithDefaults()
	p := Params{
		Width:    req.Width,
		Height:   req.Height,
		Steps:    req.Steps,
		Guidance: req.Guidance,
		Seed:     seed,
	}

	switch {
	case device.Kind == models.DeviceKindCPUOnly:
		p.Steps = minInt(p.Steps, th.cpuMaxSteps())
	case device.Kind == models.DeviceKindDegradedAccelerated, device.FreeMemoryGB < th.LowMemoryGB:
		p = capParams(p, LowMemoryMaxSide, LowMemoryMaxSteps)
	}
	return p
}

// Reduced returns the parameters for the single out-of-memory retry.
func (p Params) Reduced() Params {
	return capParams(p, ReducedMaxSide, ReducedMaxSteps)
}

// ForCPU returns the parameters for the CPU fallback attempt.
func (p Params) ForCPU(th Thresholds) Params {
	p.Steps = minInt(p.Steps, th.cpuMaxSteps())
	return p
}

func capParams(p Params, side, steps int) Params {
	p.Width = minInt(p.Width, side)
	p.Height = minInt(p.Height, side)
	p.Steps = minInt(p.Steps, steps)
	return p
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

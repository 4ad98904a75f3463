package models

import "fmt"

// DeviceKind describes what compute the image pipeline can rely on.
type DeviceKind string

const (
	DeviceKindAccelerated         DeviceKind = "accelerated"
	DeviceKindDegradedAccelerated DeviceKind = "degraded_accelerated"
	DeviceKindCPUOnly             DeviceKind = "cpu_only"
)

// DeviceState is a per-request snapshot of device capability.
type DeviceState struct {
	Kind         DeviceKind `json:"kind"`
	FreeMemoryGB float64    `json:"free_memory_gb"`
	Name         string     `json:"name,omitempty"`
}

// CPUOnlyState is returned whenever detection fails.
func CPUOnlyState() DeviceState {
	return DeviceState{Kind: DeviceKindCPUOnly}
}

// IsAccelerated reports whether any accelerator is in use, degraded or not.
func (d DeviceState) IsAccelerated() bool {
	return d.Kind == DeviceKindAccelerated || d.Kind == DeviceKindDegradedAccelerated
}

func (d DeviceState) String() string {
	if d.Name != "" {
		return fmt.Sprintf("%s (%s, %.1fGB free)", d.Kind, d.Name, d.FreeMemoryGB)
	}
	return fmt.Sprintf("%s (%.1fGB free)", d.Kind, d.FreeMemoryGB)
}

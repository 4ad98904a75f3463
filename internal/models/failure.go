package models

// FailureKind classifies why a model invocation did not produce usable output.
// Upstream logic branches on this instead of matching error strings.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureTransient         FailureKind = "transient"          // Timeout, rate limit, bad or empty response
	FailureResourceExhausted FailureKind = "resource_exhausted" // Out of memory on the device
	FailureFatal             FailureKind = "fatal"              // Misconfiguration or rejected request
)

// String returns the kind name, or "none" for FailureNone.
func (k FailureKind) String() string {
	if k == FailureNone {
		return "none"
	}
	return string(k)
}

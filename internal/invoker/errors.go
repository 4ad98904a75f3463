package invoker

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// rateLimitIndicator matches upstream messages that signal throttling.
var rateLimitIndicator = regexp.MustCompile(`(?i)(out of.*quota|rate.?limit|usage.?limit|429|too.?many.?requests|resource.?exhausted)`)

// BackendError is the typed failure returned by backends.
type BackendError struct {
	Provider   string
	StatusCode int
	Kind       models.FailureKind
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d, %s)", e.Provider, msg, e.StatusCode, e.Kind)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Provider, msg, e.Kind)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// KindForStatus maps an upstream HTTP status to a FailureKind.
func KindForStatus(status int) models.FailureKind {
	switch {
	case status == http.StatusInsufficientStorage:
		return models.FailureResourceExhausted
	case status == http.StatusTooManyRequests, status >= 500:
		return models.FailureTransient
	case status == http.StatusBadRequest,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusNotFound,
		status == http.StatusUnprocessableEntity:
		return models.FailureFatal
	}
	return models.FailureTransient
}

// NewStatusError builds a BackendError classified by HTTP status. Rate-limit
// markers in msg make an otherwise fatal status transient.
func NewStatusError(provider string, status int, msg string, err error) *BackendError {
	kind := KindForStatus(status)
	if kind == models.FailureFatal && IsRateLimit(msg) {
		kind = models.FailureTransient
	}
	return &BackendError{
		Provider:   provider,
		StatusCode: status,
		Kind:       kind,
		Message:    msg,
		Err:        err,
	}
}

// IsRateLimit reports whether msg looks like a throttling message.
func IsRateLimit(msg string) bool {
	return msg != "" && rateLimitIndicator.MatchString(msg)
}

// Classify returns the FailureKind of err. Errors that carry no type
// information are treated as transient.
func Classify(err error) models.FailureKind {
	if err == nil {
		return models.FailureNone
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	// Deadlines, cancellations and network errors.
	return models.FailureTransient
}

// IsResourceExhausted reports whether err was classified as out of memory.
func IsResourceExhausted(err error) bool {
	return Classify(err) == models.FailureResourceExhausted
}

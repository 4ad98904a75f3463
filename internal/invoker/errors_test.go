package invoker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   models.FailureKind
	}{
		{400, models.FailureFatal},
		{401, models.FailureFatal},
		{403, models.FailureFatal},
		{404, models.FailureFatal},
		{422, models.FailureFatal},
		{429, models.FailureTransient},
		{500, models.FailureTransient},
		{502, models.FailureTransient},
		{503, models.FailureTransient},
		{507, models.FailureResourceExhausted},
		{418, models.FailureTransient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, KindForStatus(tt.status))
		})
	}
}

func TestNewStatusErrorRateLimitOverride(t *testing.T) {
	err := NewStatusError("together", 400, "Rate limit reached for model", nil)
	assert.Equal(t, models.FailureTransient, err.Kind)

	err = NewStatusError("together", 400, "invalid model name", nil)
	assert.Equal(t, models.FailureFatal, err.Kind)
}

func TestClassify(t *testing.T) {
	wrapped := fmt.Errorf("call: %w", &BackendError{Kind: models.FailureResourceExhausted})

	assert.Equal(t, models.FailureNone, Classify(nil))
	assert.Equal(t, models.FailureResourceExhausted, Classify(wrapped))
	assert.Equal(t, models.FailureTransient, Classify(context.DeadlineExceeded))
	assert.Equal(t, models.FailureTransient, Classify(errors.New("connection refused")))
	assert.True(t, IsResourceExhausted(wrapped))
}

func TestBackendErrorMessage(t *testing.T) {
	err := &BackendError{Provider: "sd", StatusCode: 500, Kind: models.FailureTransient, Message: "worker crashed"}
	assert.Equal(t, "sd: worker crashed (HTTP 500, transient)", err.Error())

	inner := errors.New("dial tcp")
	err = &BackendError{Provider: "sd", Kind: models.FailureTransient, Err: inner}
	assert.Equal(t, "sd: dial tcp (transient)", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, IsRateLimit("Too Many Requests"))
	assert.True(t, IsRateLimit("you are out of your monthly quota"))
	assert.False(t, IsRateLimit(""))
	assert.False(t, IsRateLimit("model not found"))
}

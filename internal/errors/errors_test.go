package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/pollctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrInvalidPeriod)
	assert.Equal(t, "Invalid report period (invalid_period)", err.Error())

	wrapped := errFactory.Wrap(errors.ErrOpenSource, fmt.Errorf("boom"))
	assert.Equal(t, "Failed to open sample source (open_source_failed): boom", wrapped.Error())

	withData := errFactory.WithData(errors.ErrInvalidConfig, "period must be positive")
	assert.Contains(t, withData.Error(), "period must be positive")

	custom := errFactory.WithMessage(errors.ErrInternal, "custom")
	assert.Equal(t, "custom (internal_error)", custom.Error())
}

func TestUnknownCodeFallsBackToCode(t *testing.T) {
	assert.Equal(t, "made_up", errors.GetErrorMessage(errors.ErrorCode("made_up")))
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.New(errors.ErrInvalidLogLevel)
	outer := errFactory.Wrap(errors.ErrInvalidConfig, inner)
	stdWrapped := fmt.Errorf("loading: %w", outer)

	assert.True(t, errors.HasCode(stdWrapped, errors.ErrInvalidConfig))
	assert.True(t, errors.HasCode(stdWrapped, errors.ErrInvalidLogLevel))
	assert.False(t, errors.HasCode(stdWrapped, errors.ErrTimeout))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
}

func TestIsMatchesCode(t *testing.T) {
	errFactory := errors.New()
	err := errFactory.Wrap(errors.ErrRecordMetrics, fmt.Errorf("disk full"))

	assert.ErrorIs(t, err, errFactory.New(errors.ErrRecordMetrics))
	assert.NotErrorIs(t, err, errFactory.New(errors.ErrCloseMetrics))
}

func TestWithDataKeepsCode(t *testing.T) {
	err := errors.New().New(errors.ErrTimeout).WithData(42)
	assert.Equal(t, errors.ErrTimeout, err.Code())
	assert.Equal(t, 42, err.GetData())
}

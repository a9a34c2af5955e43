package loop

import "codeberg.org/mutker/pollctl/internal/errors"

const (
	ErrInvalidOptions = errors.ErrInvalidArgument
	ErrSampleRead     = errors.ErrorCode("loop_sample_read_failed")
	ErrSourceFailed   = errors.ErrorCode("loop_source_failed")
)

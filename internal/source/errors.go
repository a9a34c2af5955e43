package source

import "codeberg.org/mutker/pollctl/internal/errors"

const (
	ErrUnknownSource  = errors.ErrorCode("source_unknown")
	ErrInvalidCommand = errors.ErrorCode("source_invalid_command")
	ErrCommandFailed  = errors.ErrorCode("source_command_failed")
	ErrInvalidSample  = errors.ErrorCode("source_invalid_sample")
	ErrSampleRange    = errors.ErrorCode("source_sample_out_of_range")

	ErrNVMLInit          = errors.ErrorCode("source_nvml_init_failed")
	ErrDeviceNotFound    = errors.ErrorCode("source_nvml_device_not_found")
	ErrTemperatureFailed = errors.ErrorCode("source_nvml_temperature_failed")
	ErrPowerUsageFailed  = errors.ErrorCode("source_nvml_power_usage_failed")
	ErrNVMLShutdown      = errors.ErrorCode("source_nvml_shutdown_failed")
	ErrUnknownMetric     = errors.ErrorCode("source_nvml_unknown_metric")
)

package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig      ErrorCode = "invalid_configuration"
	ErrBindFlags          ErrorCode = "bind_flags_failed"
	ErrParseFlags         ErrorCode = "parse_flags_failed"
	ErrReadConfig         ErrorCode = "read_config_failed"
	ErrInvalidInterval    ErrorCode = "invalid_interval"
	ErrInvalidPeriod      ErrorCode = "invalid_period"
	ErrInvalidAttenuation ErrorCode = "invalid_attenuation"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Application errors
	ErrInitApp     ErrorCode = "init_app_failed"
	ErrMainLoop    ErrorCode = "main_loop_failed"
	ErrOpenSource  ErrorCode = "open_source_failed"
	ErrCloseSource ErrorCode = "close_source_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"

	// Metrics errors
	ErrInitMetrics   ErrorCode = "init_metrics_failed"
	ErrRecordMetrics ErrorCode = "record_metrics_failed"
	ErrCloseMetrics  ErrorCode = "close_metrics_failed"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrAlreadyRunning:     "Another instance is already running",
	ErrInvalidConfig:      "Invalid configuration",
	ErrBindFlags:          "Failed to bind flags",
	ErrParseFlags:         "Failed to parse flags",
	ErrReadConfig:         "Failed to read config file",
	ErrInvalidInterval:    "Invalid poll interval",
	ErrInvalidPeriod:      "Invalid report period",
	ErrInvalidAttenuation: "Attenuation factor does not fit the accumulator",
	ErrInvalidLogLevel:    "Invalid log level",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrInitApp:            "Failed to initialize application",
	ErrMainLoop:           "Error in main loop",
	ErrOpenSource:         "Failed to open sample source",
	ErrCloseSource:        "Failed to close sample source",
	ErrOperationFailed:    "Operation failed",
	ErrTimeout:            "Operation timed out",
	ErrInitMetrics:        "Failed to initialize metrics",
	ErrRecordMetrics:      "Failed to record metrics",
	ErrCloseMetrics:       "Failed to close metrics",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}

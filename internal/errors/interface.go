package errors

// ErrorCode identifies a failure class. Codes are stable strings so they can
// be logged and matched without parsing messages.
type ErrorCode string

// Error is a coded application error with optional context.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory creates coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}

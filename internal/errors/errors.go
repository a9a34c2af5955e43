package errors

import (
	"errors"
	"fmt"
)

// Basic error check functions from standard library
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

func (e *appError) Error() string {
	msg := e.message
	if msg == "" {
		msg = GetErrorMessage(e.code)
	}

	switch {
	case e.data != nil:
		return fmt.Sprintf("%s (%s): %v", msg, e.code, e.data)
	case e.err != nil:
		return fmt.Sprintf("%s (%s): %v", msg, e.code, e.err)
	default:
		return fmt.Sprintf("%s (%s)", msg, e.code)
	}
}

func (e *appError) Code() ErrorCode {
	return e.code
}

func (e *appError) WithMessage(msg string) Error {
	return &appError{
		code:    e.code,
		message: msg,
		err:     e.err,
		data:    e.data,
	}
}

func (e *appError) WithData(data any) Error {
	return &appError{
		code:    e.code,
		message: e.message,
		err:     e.err,
		data:    data,
	}
}

func (e *appError) GetData() any {
	return e.data
}

func (e *appError) Unwrap() error {
	return e.err
}

// Is matches another coded error with the same code, so sentinel-style
// checks work against freshly built errors.
func (e *appError) Is(target error) bool {
	var other Error
	if !errors.As(target, &other) {
		return false
	}

	return other.Code() == e.code
}

type defaultFactory struct{}

func (*defaultFactory) New(code ErrorCode) Error {
	return &appError{
		code: code,
	}
}

func (*defaultFactory) Wrap(code ErrorCode, err error) Error {
	return &appError{
		code: code,
		err:  err,
	}
}

func (*defaultFactory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{
		code:    code,
		message: msg,
	}
}

func (*defaultFactory) WithData(code ErrorCode, data any) Error {
	return &appError{
		code: code,
		data: data,
	}
}

// New creates a Factory instance for error creation
func New() Factory {
	return &defaultFactory{}
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var coded Error
		if !errors.As(err, &coded) {
			return false
		}
		if coded.Code() == code {
			return true
		}
		err = coded.Unwrap()
	}

	return false
}

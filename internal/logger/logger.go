package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/pollctl/internal/errors"
	"github.com/rs/zerolog"
)

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

type zeroLogger struct {
	log zerolog.Logger
}

var std = &zeroLogger{log: zerolog.New(os.Stdout).Level(zerolog.WarnLevel)}

// New returns a JSON logger writing to w at the given level.
func New(w io.Writer, level LogLevel) Logger {
	return &zeroLogger{log: zerolog.New(w).Level(zerolog.Level(level)).With().Timestamp().Logger()}
}

// Init configures the default logger. Services get a console writer
// without timestamps since the journal adds its own.
func Init(level LogLevel, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	std.log = zerolog.New(output).Level(zerolog.Level(level)).With().Timestamp().Logger()
}

// ParseLevel maps a configured level name to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return 0, errors.New().WithData(errors.ErrInvalidLogLevel, name)
	}
}

// Default returns the logger configured by Init.
func Default() Logger {
	return std
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

func (l *zeroLogger) Debug() *LogEvent {
	return &LogEvent{l.log.Debug()}
}

func (l *zeroLogger) Info() *LogEvent {
	return &LogEvent{l.log.Info()}
}

func (l *zeroLogger) Warn() *LogEvent {
	return &LogEvent{l.log.Warn()}
}

func (l *zeroLogger) Error() *LogEvent {
	return &LogEvent{l.log.Error()}
}

func (l *zeroLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{l.log.Error().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Debug logs a debug message
func Debug() *LogEvent {
	return std.Debug()
}

// Info logs an info message
func Info() *LogEvent {
	return std.Info()
}

// Warn logs a warning message
func Warn() *LogEvent {
	return std.Warn()
}

// Error logs an error message
func Error() *LogEvent {
	return std.Error()
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return std.ErrorWithCode(err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{std.log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{std.log.Fatal().
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

package logger_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DebugLevel},
		{"INFO", logger.InfoLevel},
		{"warning", logger.WarnLevel},
		{"warn", logger.WarnLevel},
		{"error", logger.ErrorLevel},
	}

	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.InfoLevel)

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Info().Int("filtered", 42).Msg("report")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "report", entry["message"])
	assert.EqualValues(t, 42, entry["filtered"])
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.DebugLevel)

	err := errors.New().Wrap(errors.ErrOpenSource, fmt.Errorf("no such device"))
	log.ErrorWithCode(err).Msg("open failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "open_source_failed", entry["error_code"])
	assert.Equal(t, "no such device", entry["error"])
}

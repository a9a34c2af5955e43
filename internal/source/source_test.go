package source_test

import (
	"context"
	"testing"

	"codeberg.org/mutker/pollctl/internal/config"
	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/logger"
	"codeberg.org/mutker/pollctl/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	log := logger.Default()

	src, err := source.Open(source.Config{Kind: config.SourceSynthetic}, log)
	require.NoError(t, err)
	assert.Equal(t, "synthetic", src.Name())
	require.NoError(t, src.Close())

	src, err = source.Open(source.Config{Kind: config.SourceCommand, Command: "echo 1"}, log)
	require.NoError(t, err)
	assert.Equal(t, "command:echo", src.Name())

	_, err = source.Open(source.Config{Kind: "serial"}, log)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, source.ErrUnknownSource))
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Source:    config.SourceNVML,
		GPUIndex:  1,
		GPUMetric: config.GPUMetricPower,
	}

	assert.Equal(t, source.Config{
		Kind:      config.SourceNVML,
		GPUIndex:  1,
		GPUMetric: config.GPUMetricPower,
	}, source.FromConfig(cfg))
}

func TestSyntheticSquareWave(t *testing.T) {
	src := source.NewSynthetic(source.SyntheticProfile{Low: 10, High: 20, HalfCycle: 2})
	ctx := context.Background()

	var got []uint16
	for i := 0; i < 6; i++ {
		v, err := src.Read(ctx)
		require.NoError(t, err)
		got = append(got, v)
	}

	assert.Equal(t, []uint16{10, 10, 20, 20, 10, 10}, got)
}

func TestSyntheticJitterBoundedAndDeterministic(t *testing.T) {
	profile := source.SyntheticProfile{Low: 100, High: 100, HalfCycle: 10, Jitter: 8, Seed: 42}
	a := source.NewSynthetic(profile)
	b := source.NewSynthetic(profile)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		va, err := a.Read(ctx)
		require.NoError(t, err)
		vb, err := b.Read(ctx)
		require.NoError(t, err)

		assert.Equal(t, va, vb)
		assert.GreaterOrEqual(t, va, uint16(100))
		assert.Less(t, va, uint16(108))
	}
}

func TestSyntheticHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.NewSynthetic(source.DefaultSyntheticProfile()).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommandRead(t *testing.T) {
	src, err := source.NewCommand(`printf '%s\n' 4321`)
	require.NoError(t, err)

	v, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(4321), v)
}

func TestCommandErrors(t *testing.T) {
	_, err := source.NewCommand("   ")
	assert.True(t, errors.HasCode(err, source.ErrInvalidCommand))

	_, err = source.NewCommand(`echo "unterminated`)
	assert.True(t, errors.HasCode(err, source.ErrInvalidCommand))

	tests := []struct {
		cmdline string
		code    errors.ErrorCode
	}{
		{"false", source.ErrCommandFailed},
		{"echo hot", source.ErrInvalidSample},
		{"echo -5", source.ErrInvalidSample},
		{"echo 70000", source.ErrSampleRange},
	}

	for _, tt := range tests {
		t.Run(tt.cmdline, func(t *testing.T) {
			src, err := source.NewCommand(tt.cmdline)
			require.NoError(t, err)

			_, err = src.Read(context.Background())
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

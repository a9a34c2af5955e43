// Package source provides the raw sample readers that feed the control
// loop. A source is hardware or process I/O; it may fail, unlike the
// filter it feeds.
package source

import (
	"context"

	"codeberg.org/mutker/pollctl/internal/config"
	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/logger"
)

// Source yields one raw sample per Read.
type Source interface {
	Name() string
	Read(ctx context.Context) (uint16, error)
	Close() error
}

type Config struct {
	Kind      string
	Command   string
	GPUIndex  int
	GPUMetric string
}

// FromConfig extracts the source settings from the application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Kind:      cfg.Source,
		Command:   cfg.Command,
		GPUIndex:  cfg.GPUIndex,
		GPUMetric: cfg.GPUMetric,
	}
}

// Open builds the source selected by cfg.Kind.
func Open(cfg Config, log logger.Logger) (Source, error) {
	switch cfg.Kind {
	case config.SourceSynthetic:
		return NewSynthetic(DefaultSyntheticProfile()), nil
	case config.SourceCommand:
		src, err := NewCommand(cfg.Command)
		if err != nil {
			return nil, err
		}

		return src, nil
	case config.SourceNVML:
		src, err := OpenNVML(cfg.GPUIndex, cfg.GPUMetric, log)
		if err != nil {
			return nil, err
		}

		return src, nil
	default:
		return nil, errors.New().WithData(ErrUnknownSource, cfg.Kind)
	}
}

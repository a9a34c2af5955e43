package metrics

import (
	"context"

	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

type noopCollector struct{}

// NewService returns a collector backed by SQLite, or a no-op collector
// when metrics are disabled.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create metrics repository")
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Bool("enabled", cfg.Enabled).
		Msg("Metrics service initialized successfully")

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) Record(ctx context.Context, snapshot *Snapshot) error {
	errFactory := errors.New()

	if snapshot == nil {
		return errFactory.New(ErrInvalidSnapshot)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(snapshot); err != nil {
			return errFactory.Wrap(ErrMetricsCollection, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}

	return nil
}

func (noopCollector) Record(context.Context, *Snapshot) error {
	return nil
}

func (noopCollector) Close() error {
	return nil
}

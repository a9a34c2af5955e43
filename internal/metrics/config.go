package metrics

import (
	"path/filepath"

	"codeberg.org/mutker/pollctl/internal/config"
	"codeberg.org/mutker/pollctl/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm  = 0o755
	defaultDBPath   = config.DefaultMetricsDB
	backupDirName   = "backups"
	defaultBatch    = config.DefaultMetricsBatchSize
	defaultBatchSec = config.DefaultMetricsBatchTimeout
)

type Config struct {
	DBPath       string
	BatchSize    int
	BatchTimeout int // seconds between forced flushes; 0 disables the flusher
	Enabled      bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatch,
		BatchTimeout: defaultBatchSec,
		Enabled:      false, // Disabled by default
	}
}

// FromConfig extracts the metrics settings from the application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		DBPath:       cfg.MetricsDB,
		BatchSize:    cfg.MetricsBatchSize,
		BatchTimeout: cfg.MetricsBatchTimeout,
		Enabled:      cfg.Metrics,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout int
		}{c.BatchSize, c.BatchTimeout})
	}

	return nil
}

func (c Config) backupDir() string {
	return filepath.Join(filepath.Dir(c.DBPath), backupDirName)
}

package metrics_test

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/pollctl/internal/config"
	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/logger"
	"codeberg.org/mutker/pollctl/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logger.Logger {
	return logger.New(io.Discard, logger.DebugLevel)
}

func snapshot(i int) *metrics.Snapshot {
	return &metrics.Snapshot{
		Timestamp:   time.UnixMilli(int64(1_700_000_000_000 + i)),
		ClockMillis: uint32(1000 * i),
		Source:      "synthetic",
		Raw:         uint16(100 + i),
		Filtered:    uint16(90 + i),
		Attenuation: 4,
	}
}

func TestRepositoryBatchesAndReadsBack(t *testing.T) {
	cfg := metrics.Config{
		DBPath:    filepath.Join(t.TempDir(), "metrics.db"),
		BatchSize: 2,
		Enabled:   true,
	}

	repo, err := metrics.NewRepository(cfg, testLogger())
	require.NoError(t, err)
	defer repo.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Record(snapshot(i)))
	}

	got, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, uint16(102), got[0].Raw, "newest first")
	assert.Equal(t, uint16(92), got[0].Filtered)
	assert.Equal(t, uint32(2000), got[0].ClockMillis)
	assert.Equal(t, "synthetic", got[0].Source)
	assert.Equal(t, uint8(4), got[0].Attenuation)
	assert.Equal(t, snapshot(2).Timestamp.UnixMilli(), got[0].Timestamp.UnixMilli())
	assert.Equal(t, uint16(100), got[2].Raw)

	limited, err := repo.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepositoryFlushesOnClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "metrics.db")
	cfg := metrics.Config{DBPath: dbPath, BatchSize: 100, BatchTimeout: 60, Enabled: true}

	repo, err := metrics.NewRepository(cfg, testLogger())
	require.NoError(t, err)

	require.NoError(t, repo.Record(snapshot(1)))
	require.NoError(t, repo.Record(snapshot(2)))
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close(), "second close is a no-op")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestSchemaVersionMismatchBacksUpAndRecreates(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "metrics.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));
		CREATE TABLE samples (legacy INTEGER);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := metrics.NewRepository(metrics.Config{DBPath: dbPath, BatchSize: 1, Enabled: true}, testLogger())
	require.NoError(t, err)
	require.NoError(t, repo.Record(snapshot(1)))
	require.NoError(t, repo.Close())

	backups, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "metrics_v99_")

	db, err = sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	version, err := metrics.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, metrics.SchemaVersion, version)
}

func TestGetSchemaVersionEmptyDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer db.Close()

	version, err := metrics.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestNewRepositoryRequiresPath(t *testing.T) {
	_, err := metrics.NewRepository(metrics.Config{}, testLogger())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidDBPath))
}

func TestServiceDisabledIsNoop(t *testing.T) {
	collector, err := metrics.NewService(metrics.DefaultConfig(), testLogger())
	require.NoError(t, err)

	assert.NoError(t, collector.Record(context.Background(), snapshot(1)))
	assert.NoError(t, collector.Close())
}

func TestServiceRecord(t *testing.T) {
	cfg := metrics.Config{
		DBPath:    filepath.Join(t.TempDir(), "metrics.db"),
		BatchSize: 1,
		Enabled:   true,
	}
	collector, err := metrics.NewService(cfg, testLogger())
	require.NoError(t, err)
	defer collector.Close()

	require.NoError(t, collector.Record(context.Background(), snapshot(1)))

	err = collector.Record(context.Background(), nil)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidSnapshot))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = collector.Record(ctx, snapshot(2))
	assert.True(t, errors.HasCode(err, metrics.ErrOperationTimeout))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceInvalidConfig(t *testing.T) {
	_, err := metrics.NewService(metrics.Config{Enabled: true}, testLogger())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, metrics.ErrInvalidDBPath))
}

func TestFromConfig(t *testing.T) {
	cfg := metrics.FromConfig(&config.Config{
		Metrics:             true,
		MetricsDB:           "/tmp/x.db",
		MetricsBatchSize:    7,
		MetricsBatchTimeout: 3,
	})

	assert.Equal(t, metrics.Config{DBPath: "/tmp/x.db", BatchSize: 7, BatchTimeout: 3, Enabled: true}, cfg)
}

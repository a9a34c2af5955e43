package metrics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db        *sql.DB
	logger    logger.Logger
	cfg       Config
	mu        sync.Mutex
	buffer    []*Snapshot
	ticker    *time.Ticker
	shutdown  chan struct{}
	flushDone chan struct{}
	closeOnce sync.Once
}

// NewRepository opens (creating if needed) the SQLite database at
// cfg.DBPath. Snapshots are buffered and written in batches of
// cfg.BatchSize, and every cfg.BatchTimeout seconds when positive.
func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Int("batch_timeout", cfg.BatchTimeout).
		Msg("Metrics repository initialized")

	repo := &repository{
		db:        db,
		logger:    log,
		cfg:       cfg,
		buffer:    make([]*Snapshot, 0, max(cfg.BatchSize, 1)),
		shutdown:  make(chan struct{}),
		flushDone: make(chan struct{}),
	}

	if cfg.BatchTimeout > 0 {
		repo.ticker = time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second)
		go repo.flusher()
	} else {
		close(repo.flushDone)
	}

	return repo, nil
}

func (r *repository) Record(snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *snapshot
	r.buffer = append(r.buffer, &copied)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

// Recent returns up to limit stored snapshots, newest first. Buffered
// snapshots are flushed first so they are included.
func (r *repository) Recent(ctx context.Context, limit int) ([]Snapshot, error) {
	errFactory := errors.New()

	r.mu.Lock()
	err := r.flush()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, recentSamplesSQL, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var (
			recordedAt int64
			s          Snapshot
		)
		if err := rows.Scan(&recordedAt, &s.ClockMillis, &s.Source, &s.Raw, &s.Filtered, &s.Attenuation); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		s.Timestamp = time.UnixMilli(recordedAt)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return snapshots, nil
}

func (r *repository) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.close()
	})

	return err
}

func (r *repository) close() error {
	errFactory := errors.New()

	close(r.shutdown)
	if r.ticker != nil {
		r.ticker.Stop()
	}
	<-r.flushDone

	r.mu.Lock()
	flushErr := r.flush()
	r.mu.Unlock()
	if flushErr != nil {
		r.logger.Error().Err(flushErr).Msg("Failed to flush metrics on close")
	}

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.db.Close()
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("Metrics repository closed gracefully")

	return flushErr
}

func (r *repository) flusher() {
	defer close(r.flushDone)

	for {
		select {
		case <-r.ticker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Error().Err(err).Msg("Periodic metrics flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdown:
			return
		}
	}
}

// flush writes the buffer in one transaction. Callers hold r.mu.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, snapshot := range r.buffer {
		if _, err := stmt.Exec(
			snapshot.Timestamp.UnixMilli(),
			int64(snapshot.ClockMillis),
			snapshot.Source,
			int64(snapshot.Raw),
			int64(snapshot.Filtered),
			int64(snapshot.Attenuation),
		); err != nil {
			r.logger.Error().Err(err).Msg("Failed to execute insert")
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed metrics to database")
	r.buffer = r.buffer[:0]

	return nil
}

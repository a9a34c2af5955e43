package metrics

import (
	"database/sql"

	"codeberg.org/mutker/pollctl/internal/errors"
	"codeberg.org/mutker/pollctl/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       id          INTEGER PRIMARY KEY AUTOINCREMENT,
	       recorded_at INTEGER NOT NULL,
	       clock_ms    INTEGER NOT NULL CHECK (clock_ms BETWEEN 0 AND 4294967295),
	       source      TEXT    NOT NULL,
	       raw         INTEGER NOT NULL CHECK (raw BETWEEN 0 AND 65535),
	       filtered    INTEGER NOT NULL CHECK (filtered BETWEEN 0 AND 65535),
	       attenuation INTEGER NOT NULL CHECK (attenuation BETWEEN 0 AND 255)
	   );
	   CREATE INDEX IF NOT EXISTS samples_recorded_at ON samples (recorded_at);`

	insertSampleSQL = `
    INSERT INTO samples (
        recorded_at, clock_ms, source, raw, filtered, attenuation
    ) VALUES (?, ?, ?, ?, ?, ?)`

	recentSamplesSQL = `
    SELECT recorded_at, clock_ms, source, raw, filtered, attenuation
    FROM samples
    ORDER BY id DESC
    LIMIT ?`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}

	return exists, nil
}

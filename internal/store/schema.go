package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 mirrors the results table: request parameters are ip_* columns,
// outcomes are op_* columns.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS experiment_results (
    partition_key TEXT NOT NULL,
    row_key TEXT PRIMARY KEY,

    experiment_id TEXT,
    name TEXT,
    description TEXT,

    start_time TEXT,
    end_time TEXT,
    duration_ns INTEGER DEFAULT 0,
    duration_sec INTEGER DEFAULT 0,

    ip_min_value REAL,
    ip_max_value REAL,
    ip_max_boost REAL,
    ip_min_pct_overlap_duty_cycles REAL,
    ip_input_bits INTEGER,
    ip_num_columns INTEGER,
    ip_cells_per_column INTEGER,
    ip_duty_cycle_period INTEGER,
    ip_local_area_density INTEGER,
    ip_activation_threshold INTEGER,

    op_state TEXT,
    op_converged INTEGER DEFAULT 0,
    op_sweeps INTEGER DEFAULT 0,
    op_first_stable_sweep INTEGER DEFAULT 0,
    op_last_stable_sweep INTEGER DEFAULT 0,

    output_file TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_experiment ON experiment_results(experiment_id);
CREATE INDEX IF NOT EXISTS idx_results_start ON experiment_results(start_time);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database, or validates and
// migrates an existing one.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// No schema_version table yet.
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, SchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}
	return rows.Err()
}

package migrations

import (
	"database/sql"
	"errors"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add lookup indices for report tables",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_reports_kind ON reports(kind, generated_at DESC);
			CREATE INDEX IF NOT EXISTS idx_sanity_results_report ON sanity_results(report_id, position);
			CREATE INDEX IF NOT EXISTS idx_sanity_results_scenario ON sanity_results(scenario, model);
			CREATE INDEX IF NOT EXISTS idx_load_samples_report ON load_samples(report_id, start_offset_ms);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_reports_kind;
			DROP INDEX IF EXISTS idx_sanity_results_report;
			DROP INDEX IF EXISTS idx_sanity_results_scenario;
			DROP INDEX IF EXISTS idx_load_samples_report;
		`,
	},
	{
		Version: 2,
		Name:    "Add per-kind totals view for sanity reports",
		Up: `
			CREATE VIEW IF NOT EXISTS sanity_kind_totals AS
			SELECT report_id,
			       kind,
			       COUNT(*) AS total,
			       SUM(CASE WHEN passed = 1 THEN 1 ELSE 0 END) AS passed,
			       SUM(CASE WHEN passed = 0 THEN 1 ELSE 0 END) AS failed
			FROM sanity_results
			GROUP BY report_id, kind;
		`,
		Down: `
			DROP VIEW IF EXISTS sanity_kind_totals;
		`,
	},
}

// InitSchema creates all tables of a report database
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		target TEXT,
		generated_at DATETIME NOT NULL,
		passed INTEGER NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sanity_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		scenario TEXT NOT NULL,
		kind TEXT NOT NULL,
		model TEXT NOT NULL,
		passed INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		failures TEXT,
		request_snippet TEXT,
		response_snippet TEXT,
		started_at DATETIME NOT NULL,
		FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS load_runs (
		report_id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		name TEXT,
		status TEXT NOT NULL,
		model TEXT,
		users INTEGER NOT NULL,
		spawn_rate REAL DEFAULT 0,
		run_time_ms INTEGER DEFAULT 0,
		requests_per_user INTEGER DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		total_requests INTEGER DEFAULT 0,
		successes INTEGER DEFAULT 0,
		network_errors INTEGER DEFAULT 0,
		validation_errors INTEGER DEFAULT 0,
		dropped INTEGER DEFAULT 0,
		error_rate REAL DEFAULT 0,
		requests_per_sec REAL DEFAULT 0,
		avg_duration_ms REAL DEFAULT 0,
		min_duration_ms INTEGER DEFAULT 0,
		max_duration_ms INTEGER DEFAULT 0,
		p50_duration_ms INTEGER DEFAULT 0,
		p90_duration_ms INTEGER DEFAULT 0,
		p95_duration_ms INTEGER DEFAULT 0,
		p99_duration_ms INTEGER DEFAULT 0,
		FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS load_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		start_offset_ms INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		request_size INTEGER DEFAULT 0,
		response_size INTEGER DEFAULT 0,
		success INTEGER NOT NULL,
		network_error TEXT,
		validation_error TEXT,
		category TEXT,
		FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run creates the schema and applies the pending migrations, each in its
// own transaction
func Run(db *sql.DB) error {
	if err := InitSchema(db); err != nil {
		return err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range AllMigrations {
		if m.Version <= current {
			continue
		}
		err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.Up); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts applied migrations, newest first, down to version target
func Rollback(db *sql.DB, target int) error {
	current, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	for i := len(AllMigrations) - 1; i >= 0; i-- {
		m := AllMigrations[i]
		if m.Version > current || m.Version <= target {
			continue
		}
		err := inTx(db, func(tx *sql.Tx) error {
			if _, err := tx.Exec(m.Down); err != nil {
				return err
			}
			_, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("rollback of migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration, 0 for none
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return version, nil
}

func inTx(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/chatbench/internal/migrations"
)

// SQLiteEmitter stores the report in an SQLite file. Emitting the same report
// again replaces its rows.
type SQLiteEmitter struct {
	Path string
}

func (e *SQLiteEmitter) Emit(r *Report) error {
	if err := prepare(r, e.Path); err != nil {
		return err
	}

	db, err := OpenDB(e.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	return SaveReport(db, r)
}

// OpenDB opens a report database and brings its schema up to date
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run database migrations (includes schema initialization)
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// SaveReport writes the report and its rows in a single transaction
func SaveReport(db *sql.DB, r *Report) error {
	if err := r.Validate(); err != nil {
		return err
	}

	summary, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"sanity_results", "load_samples", "load_runs"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE report_id = ?", r.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO reports (id, kind, title, target, generated_at, passed, summary_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Kind), r.Title, r.Target, r.GeneratedAt, r.Passed, string(summary))
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	switch r.Kind {
	case KindSanity:
		err = saveSanityResults(tx, r)
	case KindLoad:
		err = saveLoadRun(tx, r)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

func saveSanityResults(tx *sql.Tx, r *Report) error {
	stmt, err := tx.Prepare(`
		INSERT INTO sanity_results
		(report_id, position, scenario, kind, model, passed, status_code, latency_ms, failures,
		 request_snippet, response_snippet, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, res := range r.Sanity.Results {
		_, err := stmt.Exec(r.ID, i, res.Scenario, string(res.Kind), res.Model, res.Passed, res.Status,
			res.LatencyMs, strings.Join(res.Failures, "\n"), res.Request, res.Response, res.StartedAt)
		if err != nil {
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}
	return nil
}

func saveLoadRun(tx *sql.Tx, r *Report) error {
	s := r.Load
	_, err := tx.Exec(`
		INSERT INTO load_runs
		(report_id, run_id, name, status, model, users, spawn_rate, run_time_ms, requests_per_user,
		 started_at, finished_at, total_requests, successes, network_errors, validation_errors, dropped,
		 error_rate, requests_per_sec, avg_duration_ms, min_duration_ms, max_duration_ms,
		 p50_duration_ms, p90_duration_ms, p95_duration_ms, p99_duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, s.RunID, s.Name, s.Status, s.Model, s.Users, s.SpawnRate, s.RunTimeMs, s.RequestsPerUser,
		s.StartedAt, s.FinishedAt, s.TotalRequests, s.Successes, s.NetworkErrors, s.ValidationErrors, s.Dropped,
		s.ErrorRate, s.RequestsPerSec, s.Latency.AvgMs, s.Latency.MinMs, s.Latency.MaxMs,
		s.Latency.P50Ms, s.Latency.P90Ms, s.Latency.P95Ms, s.Latency.P99Ms)
	if err != nil {
		return fmt.Errorf("failed to save load run: %w", err)
	}

	if len(s.Samples) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO load_samples
		(report_id, user_id, seq, start_offset_ms, latency_ms, status_code, request_size, response_size,
		 success, network_error, validation_error, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range s.Samples {
		_, err := stmt.Exec(r.ID, sample.User, sample.Seq, sample.StartOffsetMs, sample.LatencyMs, sample.Status,
			sample.RequestSize, sample.ResponseSize, sample.Success, nullable(sample.NetworkError),
			nullable(sample.ValidationError), nullable(sample.Category))
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

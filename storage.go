package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

func initDB(dataDir string) error {
	dbPath := filepath.Join(dataDir, "history.db")

	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err = sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			total INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			file_not_found INTEGER NOT NULL,
			launch_errors INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS job_results (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			job_name TEXT NOT NULL,
			input_path TEXT NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			stdout TEXT NOT NULL,
			stderr TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);
		CREATE TABLE IF NOT EXISTS metrics (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
		`
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func CloseDB() error {
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

// RunRecord is one completed batch run as stored in the history DB.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Total        int
	Completed    int
	FileNotFound int
	LaunchErrors int
}

// RecordRun persists a finished batch run and its per-job results. The
// position column preserves plan order so ResultsForRun can return
// results exactly as the batch was defined.
func RecordRun(run RunRecord, results []JobResult) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	for _, res := range results {
		switch res.Status {
		case StatusCompleted:
			run.Completed++
		case StatusFileNotFound:
			run.FileNotFound++
		case StatusLaunchError:
			run.LaunchErrors++
		}
	}
	run.Total = len(results)

	_, err := db.Exec(`
		INSERT INTO runs (id, started_at, finished_at, duration_ms, total, completed, file_not_found, launch_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
		run.Total,
		run.Completed,
		run.FileNotFound,
		run.LaunchErrors,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	for i, res := range results {
		errMsg := ""
		if res.Err != nil {
			errMsg = res.Err.Error()
		}
		_, err := db.Exec(`
			INSERT INTO job_results (run_id, position, job_name, input_path, status, exit_code, duration_ms, stdout, stderr, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			i,
			res.Job.Name,
			res.Job.InputPath,
			string(res.Status),
			res.ExitCode,
			res.Duration.Milliseconds(),
			res.Stdout,
			res.Stderr,
			errMsg,
		)
		if err != nil {
			return fmt.Errorf("failed to record job result: %w", err)
		}
	}
	return nil
}

// RecentRuns returns the most recent batch runs, newest first.
func RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := db.Query(`
		SELECT id, started_at, finished_at, total, completed, file_not_found, launch_errors
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var startedAt, finishedAt string
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Total, &run.Completed, &run.FileNotFound, &run.LaunchErrors); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.StartedAt, err = parseStoredTime(startedAt); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseStoredTime(finishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func parseStoredTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", value, err)
	}
	return t, nil
}

// StoredJobResult is one job outcome read back from the history DB.
type StoredJobResult struct {
	JobName    string
	InputPath  string
	Status     JobStatus
	ExitCode   int
	DurationMs int64
	Stdout     string
	Stderr     string
	Error      string
}

// ResultsForRun returns the per-job results of one run in plan order.
func ResultsForRun(runID string) ([]StoredJobResult, error) {
	rows, err := db.Query(`
		SELECT job_name, input_path, status, exit_code, duration_ms, stdout, stderr, error
		FROM job_results
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job results: %w", err)
	}
	defer rows.Close()

	var results []StoredJobResult
	for rows.Next() {
		var res StoredJobResult
		var status string
		if err := rows.Scan(&res.JobName, &res.InputPath, &status, &res.ExitCode, &res.DurationMs, &res.Stdout, &res.Stderr, &res.Error); err != nil {
			return nil, fmt.Errorf("failed to scan job result: %w", err)
		}
		res.Status = JobStatus(status)
		results = append(results, res)
	}
	return results, rows.Err()
}

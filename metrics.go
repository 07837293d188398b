package main

import (
	"database/sql"
	"fmt"
	"time"
)

func IncrementMetric(key string) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	now := time.Now().UTC()
	_, err := db.Exec(`
	INSERT INTO metrics (key, value, updated_at)
	VALUES (?, 1, ?)
	ON CONFLICT(key) DO UPDATE SET value = value + 1, updated_at = ?
	`, key, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to increment metric: %w", err)
	}
	return nil
}

func GetMetric(key string) (int64, error) {
	var value int64
	err := db.QueryRow("SELECT value FROM metrics WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get metric: %w", err)
	}
	return value, nil
}

func GetAllMetrics() (map[string]int64, error) {
	metrics := make(map[string]int64)
	rows, err := db.Query("SELECT key, value FROM metrics ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics[key] = value
	}
	return metrics, rows.Err()
}

// RecordRunMetrics bumps the aggregate counters after a batch run.
// Succeeded means a Completed result with exit code 0; a non-zero exit
// is counted separately, not as a failure of the orchestration.
func RecordRunMetrics(results []JobResult) error {
	if err := IncrementMetric("runs_total"); err != nil {
		return err
	}
	for _, res := range results {
		if err := IncrementMetric("jobs_processed"); err != nil {
			return err
		}
		var key string
		switch {
		case res.Status == StatusFileNotFound:
			key = "jobs_file_not_found"
		case res.Status == StatusLaunchError:
			key = "jobs_launch_error"
		case res.ExitCode != 0:
			key = "jobs_nonzero_exit"
		default:
			key = "jobs_succeeded"
		}
		if err := IncrementMetric(key); err != nil {
			return err
		}
	}
	return nil
}

// GetExecutionStats aggregates counters plus derived figures for the
// stats command and the dashboard.
func GetExecutionStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	totalRuns, _ := GetMetric("runs_total")
	totalProcessed, _ := GetMetric("jobs_processed")
	totalSucceeded, _ := GetMetric("jobs_succeeded")
	totalNonzero, _ := GetMetric("jobs_nonzero_exit")
	totalNotFound, _ := GetMetric("jobs_file_not_found")
	totalLaunchErr, _ := GetMetric("jobs_launch_error")

	stats["total_runs"] = totalRuns
	stats["total_processed"] = totalProcessed
	stats["total_succeeded"] = totalSucceeded
	stats["total_nonzero_exit"] = totalNonzero
	stats["total_file_not_found"] = totalNotFound
	stats["total_launch_error"] = totalLaunchErr

	var successRate float64
	if totalProcessed > 0 {
		successRate = float64(totalSucceeded) / float64(totalProcessed) * 100
	}
	stats["success_rate"] = successRate

	var avgDuration sql.NullFloat64
	err := db.QueryRow(`
		SELECT AVG(r.duration_ms) FROM job_results r
		JOIN runs ON r.run_id = runs.id
		WHERE runs.started_at > datetime('now', '-24 hours')
	`).Scan(&avgDuration)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get avg duration: %w", err)
	}
	if avgDuration.Valid {
		stats["avg_duration_ms"] = avgDuration.Float64
	} else {
		stats["avg_duration_ms"] = 0.0
	}

	return stats, nil
}

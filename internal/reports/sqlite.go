// Package reports persists batch review runs to SQLite for later audit.
package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mihari/internal/models"
)

// Run is a persisted batch run with its identifier.
type Run struct {
	ID        string                    `json:"id"`
	Timestamp string                    `json:"timestamp"`
	Summary   models.BatchReviewSummary `json:"summary"`
	Results   []*models.ReviewResult    `json:"results,omitempty"`
}

// Store persists review runs in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates a SQLite database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS review_runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		total INTEGER NOT NULL,
		approved INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		manual_review INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		duration_seconds REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_review_runs_created_at ON review_runs(created_at);

	CREATE TABLE IF NOT EXISTS review_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		video_path TEXT NOT NULL,
		decision TEXT NOT NULL,
		confidence REAL NOT NULL,
		reason TEXT,
		similar_videos TEXT,
		flags TEXT,
		FOREIGN KEY (run_id) REFERENCES review_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_review_results_run_id ON review_results(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRun persists a batch report and returns the generated run id.
func (s *Store) SaveRun(ctx context.Context, report *models.BatchReport) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO review_runs (id, created_at, total, approved, rejected, manual_review, failed, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, report.Timestamp,
		report.Summary.Total, report.Summary.Approved, report.Summary.Rejected,
		report.Summary.ManualReview, report.Summary.Failed, report.Summary.DurationSeconds,
	)
	if err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO review_results (run_id, video_path, decision, confidence, reason, similar_videos, flags)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, res := range report.Results {
		similarJSON, err := json.Marshal(res.SimilarVideos)
		if err != nil {
			return "", fmt.Errorf("failed to marshal similar videos: %w", err)
		}
		flagsJSON, err := json.Marshal(res.Flags)
		if err != nil {
			return "", fmt.Errorf("failed to marshal flags: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, res.VideoPath, string(res.Decision), res.Confidence, res.Reason,
			string(similarJSON), string(flagsJSON),
		); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// GetRun returns a run with its per-video results.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	run := Run{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, total, approved, rejected, manual_review, failed, duration_seconds
		 FROM review_runs WHERE id = ?`, id,
	).Scan(&run.Timestamp, &run.Summary.Total, &run.Summary.Approved, &run.Summary.Rejected,
		&run.Summary.ManualReview, &run.Summary.Failed, &run.Summary.DurationSeconds)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT video_path, decision, confidence, reason, similar_videos, flags
		 FROM review_results WHERE run_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var res models.ReviewResult
		var decision, similarJSON, flagsJSON string
		if err := rows.Scan(&res.VideoPath, &decision, &res.Confidence, &res.Reason, &similarJSON, &flagsJSON); err != nil {
			return nil, err
		}
		res.Decision = models.Decision(decision)
		if similarJSON != "" {
			if err := json.Unmarshal([]byte(similarJSON), &res.SimilarVideos); err != nil {
				return nil, fmt.Errorf("failed to unmarshal similar videos: %w", err)
			}
		}
		if flagsJSON != "" {
			if err := json.Unmarshal([]byte(flagsJSON), &res.Flags); err != nil {
				return nil, fmt.Errorf("failed to unmarshal flags: %w", err)
			}
		}
		run.Results = append(run.Results, &res)
	}
	return &run, rows.Err()
}

// ListRuns returns the most recent runs (summaries only), newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, total, approved, rejected, manual_review, failed, duration_seconds
		 FROM review_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Timestamp, &run.Summary.Total, &run.Summary.Approved,
			&run.Summary.Rejected, &run.Summary.ManualReview, &run.Summary.Failed,
			&run.Summary.DurationSeconds); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of persisted runs.
func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM review_runs`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moneykin1993/habit-app/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const deviceTokenKey = "device_token"

// Store wraps SQLite access for the device token and the submission journal.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS submissions (
			student_key TEXT NOT NULL,
			report_date TEXT NOT NULL,
			plan_status TEXT NOT NULL,
			study_minutes INTEGER NOT NULL,
			reason TEXT NOT NULL,
			improvement TEXT NOT NULL,
			grade TEXT NOT NULL,
			streak_days INTEGER NOT NULL,
			rate_pct REAL NOT NULL,
			submitted_at TEXT NOT NULL,
			PRIMARY KEY (student_key, report_date)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReadToken returns the stored device token, or "" when none is stored.
func (s *Store) ReadToken(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, deviceTokenKey).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// WriteToken replaces the stored device token.
func (s *Store) WriteToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		deviceTokenKey, token, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// ClearToken removes the stored device token.
func (s *Store) ClearToken(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, deviceTokenKey)
	return err
}

// RecordSubmission upserts a journal entry keyed by student and report date.
func (s *Store) RecordSubmission(ctx context.Context, e model.JournalEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (student_key, report_date, plan_status, study_minutes, reason, improvement, grade, streak_days, rate_pct, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(student_key, report_date) DO UPDATE SET
			plan_status = excluded.plan_status,
			study_minutes = excluded.study_minutes,
			reason = excluded.reason,
			improvement = excluded.improvement,
			grade = excluded.grade,
			streak_days = excluded.streak_days,
			rate_pct = excluded.rate_pct,
			submitted_at = excluded.submitted_at`,
		e.StudentKey,
		e.ReportDate,
		string(e.PlanStatus),
		e.StudyMinutes,
		e.Reason,
		e.Improvement,
		string(e.Grade),
		e.StreakDays,
		e.RatePct,
		e.SubmittedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// JournalFilter narrows ListSubmissions.
type JournalFilter struct {
	StudentKey string
	Since      string // inclusive YYYY-MM-DD report date
	Limit      int
}

// ListSubmissions returns journal entries, newest report date first.
func (s *Store) ListSubmissions(ctx context.Context, f JournalFilter) ([]model.JournalEntry, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if f.StudentKey != "" {
		clauses = append(clauses, "student_key = ?")
		args = append(args, f.StudentKey)
	}
	if f.Since != "" {
		clauses = append(clauses, "report_date >= ?")
		args = append(args, f.Since)
	}
	query := fmt.Sprintf(`SELECT student_key, report_date, plan_status, study_minutes, reason, improvement, grade, streak_days, rate_pct, submitted_at
		FROM submissions
		WHERE %s
		ORDER BY report_date DESC`, strings.Join(clauses, " AND "))
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var entries []model.JournalEntry
	for rows.Next() {
		var e model.JournalEntry
		var status, grade, submittedAt string
		if err := rows.Scan(&e.StudentKey, &e.ReportDate, &status, &e.StudyMinutes, &e.Reason, &e.Improvement, &grade, &e.StreakDays, &e.RatePct, &submittedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, submittedAt)
		if err != nil {
			return nil, err
		}
		e.PlanStatus = model.PlanStatus(status)
		e.Grade = model.Grade(grade)
		e.SubmittedAt = parsed
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied idempotently at start-up.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		roll_no TEXT NOT NULL,
		name TEXT NOT NULL,
		class_level TEXT NOT NULL,
		marks JSONB NOT NULL DEFAULT '{}'::jsonb,
		manual_total INTEGER,
		password_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (roll_no, class_level)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS staff_assignments (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		class_level TEXT NOT NULL,
		subject_key TEXT NOT NULL,
		PRIMARY KEY (user_id, class_level, subject_key)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		class_level TEXT NOT NULL,
		date DATE NOT NULL,
		status TEXT NOT NULL,
		note TEXT,
		recorded_by TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (student_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS homework (
		id TEXT PRIMARY KEY,
		class_level TEXT NOT NULL,
		subject_key TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date DATE NOT NULL,
		assigned_by TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS homework_submissions (
		homework_id TEXT NOT NULL REFERENCES homework(id) ON DELETE CASCADE,
		student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (homework_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS school_settings (
		id SMALLINT PRIMARY KEY DEFAULT 1,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		session TEXT NOT NULL DEFAULT '',
		principal TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS report_jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		params JSONB NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		result_url TEXT,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		error_message TEXT
	)`,
}

// EnsureSchema creates missing tables.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

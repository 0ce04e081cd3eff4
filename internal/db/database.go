// Package db is the SQLite store behind the booking engine.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB represents the database connection.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewDB opens the database at path and creates tables if they don't exist.
// Transactions take the write lock at BEGIN so check-then-write sequences
// run one at a time.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "db").Logger()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate&_loc=auto"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: sqlDB, path: path, logger: l}
	if err := instance.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	l.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY,
			name VARCHAR(128) UNIQUE NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			price REAL NOT NULL DEFAULT 0,
			description TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS coaches (
			id INTEGER PRIMARY KEY,
			full_name VARCHAR(64) UNIQUE NOT NULL,
			expertise_tags TEXT,
			bio TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS coach_services (
			coach_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			PRIMARY KEY (coach_id, service_id),
			FOREIGN KEY (coach_id) REFERENCES coaches(id) ON DELETE CASCADE,
			FOREIGN KEY (service_id) REFERENCES services(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS opening_hours (
			day_of_week INTEGER PRIMARY KEY,
			open_minutes INTEGER,
			close_minutes INTEGER,
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS appointment_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			full_name VARCHAR(128) NOT NULL,
			email VARCHAR(128) NOT NULL,
			phone TEXT,
			date TEXT NOT NULL,
			time_slot VARCHAR(16) NOT NULL,
			coach VARCHAR(64) NOT NULL,
			service_name VARCHAR(128) NOT NULL,
			notes VARCHAR(256),
			status TEXT NOT NULL DEFAULT 'Pending',
			requested_at DATETIME NOT NULL,
			decided_at DATETIME,
			decided_by TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			identity TEXT PRIMARY KEY,
			name TEXT,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS blocked_members (
			email TEXT PRIMARY KEY,
			reason TEXT,
			blocked_at DATETIME NOT NULL,
			blocked_by TEXT
		)`,

		// Indexes
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_appointments_coach_slot
			ON appointment_requests(coach, date, time_slot) WHERE status <> 'Rejected'`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_email_date ON appointment_requests(email, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_coach_date ON appointment_requests(coach, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointment_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointment_requests(date)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

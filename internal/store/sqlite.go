// Package store provides session storage backends for WaterWallet.
//
// This file implements the SQLite-backed session store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/jalniti/waterwallet/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if necessary creates) a SQLite session store at
// the DSN's file path, running migrations on startup.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("session database DSN not set")
	}

	if dir := filepath.Dir(cfg.DSN); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create session database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run session migrations: %w", err)
	}

	slog.Info("SQLiteStore ready", "path", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

// GetOrCreate loads a user's session, inserting a fresh one on first contact.
func (s *SQLiteStore) GetOrCreate(userID string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT user_id, step, flow, answers, choice_map, list_prompt, invalid_count, created_at, updated_at
		 FROM sessions WHERE user_id = ?`, userID)
	session, err := scanSession(row)
	if err == nil {
		return session, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}

	session = models.NewSession(userID)
	answers, choices, err := encodeSessionMaps(session)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (user_id, step, flow, answers, choice_map, list_prompt, invalid_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID, string(session.Step), string(session.Flow), answers, choices,
		session.ListPrompt, session.InvalidCount, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore created session", "user", userID)
	return session, nil
}

// Save upserts the session row.
func (s *SQLiteStore) Save(session *models.Session) error {
	answers, choices, err := encodeSessionMaps(session)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (user_id, step, flow, answers, choice_map, list_prompt, invalid_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
		   step = excluded.step, flow = excluded.flow, answers = excluded.answers,
		   choice_map = excluded.choice_map, list_prompt = excluded.list_prompt,
		   invalid_count = excluded.invalid_count, updated_at = CURRENT_TIMESTAMP`,
		session.UserID, string(session.Step), string(session.Flow), answers, choices,
		session.ListPrompt, session.InvalidCount, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	return nil
}

// Delete removes a user's session row.
func (s *SQLiteStore) Delete(userID string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

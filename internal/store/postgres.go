// Package store provides session storage backends for WaterWallet.
//
// This file implements the PostgreSQL-backed session store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/jalniti/waterwallet/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to Postgres at the DSN and runs migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("session database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run session migrations: %w", err)
	}

	slog.Info("PostgresStore ready")
	return &PostgresStore{db: db}, nil
}

// GetOrCreate loads a user's session, inserting a fresh one on first contact.
func (s *PostgresStore) GetOrCreate(userID string) (*models.Session, error) {
	row := s.db.QueryRow(
		`SELECT user_id, step, flow, answers, choice_map, list_prompt, invalid_count, created_at, updated_at
		 FROM sessions WHERE user_id = $1`, userID)
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id) DO NOTHING`,
		session.UserID, string(session.Step), string(session.Flow), answers, choices,
		session.ListPrompt, session.InvalidCount, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore created session", "user", userID)
	return session, nil
}

// Save upserts the session row.
func (s *PostgresStore) Save(session *models.Session) error {
	answers, choices, err := encodeSessionMaps(session)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (user_id, step, flow, answers, choice_map, list_prompt, invalid_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		   step = EXCLUDED.step, flow = EXCLUDED.flow, answers = EXCLUDED.answers,
		   choice_map = EXCLUDED.choice_map, list_prompt = EXCLUDED.list_prompt,
		   invalid_count = EXCLUDED.invalid_count, updated_at = NOW()`,
		session.UserID, string(session.Step), string(session.Flow), answers, choices,
		session.ListPrompt, session.InvalidCount, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	return nil
}

// Delete removes a user's session row.
func (s *PostgresStore) Delete(userID string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error { return s.db.Close() }

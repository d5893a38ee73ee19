// Package store provides session storage backends for WaterWallet.
//
// Sessions are looked up by a stable user handle (phone number) behind a
// get-or-create contract, so the default in-memory map can be swapped for a
// SQLite or Postgres backed store without touching the conversation engine.
package store

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jalniti/waterwallet/internal/models"
)

// SessionStore is the keyed session store contract.
type SessionStore interface {
	// GetOrCreate returns the session for a user, creating a fresh one
	// positioned at the main menu on first contact.
	GetOrCreate(userID string) (*models.Session, error)

	// Save persists the session after the engine has mutated it.
	Save(session *models.Session) error

	// Delete removes a user's session.
	Delete(userID string) error

	// Close releases any resources held by the store.
	Close() error
}

// Opts holds configuration for SQL-backed stores.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" or "sqlite" based on the DSN shape.
// Anything that is not recognizably a Postgres DSN is treated as a SQLite
// file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps sessions in a process-lifetime map. Entries are never
// evicted; a session parks at the main menu when a flow completes.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.Session)}
}

// GetOrCreate returns the live session for a user, creating one on first contact.
func (s *InMemoryStore) GetOrCreate(userID string) (*models.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return session, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check: another goroutine may have created it between the locks.
	if session, ok := s.sessions[userID]; ok {
		return session, nil
	}
	session = models.NewSession(userID)
	s.sessions[userID] = session
	slog.Debug("InMemoryStore created session", "user", userID)
	return session, nil
}

// Save updates the session timestamp. The in-memory store hands out live
// pointers, so the mutation itself is already visible.
func (s *InMemoryStore) Save(session *models.Session) error {
	session.UpdatedAt = time.Now()
	return nil
}

// Delete removes a user's session.
func (s *InMemoryStore) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// Len reports the number of tracked sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

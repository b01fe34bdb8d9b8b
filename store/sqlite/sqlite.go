/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements engine.Store and engine.KarmaJournal using SQLite. A single
  file holds every tenant's latest snapshot and the full karma history.

INTERFACES IMPLEMENTED:
  engine.Store:        Versioned tenant snapshots (replaced wholesale)
  engine.KarmaJournal: Append-only karma events

APPEND-ONLY ENFORCEMENT:
  The journal enforces append-only semantics:
  - No UPDATE statements on karma_events
  - No DELETE statements on karma_events, not even on unregister
  - Duplicate event ids are rejected

KEY TABLES:
  tenant_states: One JSON snapshot per tenant, with its schema version
  karma_events:  Immutable log of karma changes

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - A snapshot write survives a crash right after the call returns

USAGE:
  store, err := sqlite.New("./data/roster.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/snapshot.go: The persisted State and its migration
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/roster-engine/engine"
)

// ErrDuplicateEvent is returned when a karma event id was already journaled.
var ErrDuplicateEvent = errors.New("duplicate karma event")

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ engine.Store        = (*Store)(nil)
	_ engine.KarmaJournal = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Latest snapshot per tenant
	CREATE TABLE IF NOT EXISTS tenant_states (
		tenant_id TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		state_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Karma journal (append-only)
	CREATE TABLE IF NOT EXISTS karma_events (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		participant_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		karma_before TEXT NOT NULL,
		karma_after TEXT NOT NULL,
		reference TEXT,
		occurred_at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	-- Per-participant history (hot path of the karma-events endpoint)
	CREATE INDEX IF NOT EXISTS idx_karma_events_tenant_participant
		ON karma_events(tenant_id, participant_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT STORE (engine.Store interface)
// =============================================================================

// SaveState replaces the tenant's snapshot.
func (s *Store) SaveState(ctx context.Context, st engine.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state of %s: %w", st.TenantID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenant_states (tenant_id, schema_version, state_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at
	`, string(st.TenantID), st.SchemaVersion, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save state of %s: %w", st.TenantID, err)
	}
	return nil
}

// LoadState returns the tenant's snapshot as stored. Migration is left to
// engine.RestoreTenant.
func (s *Store) LoadState(ctx context.Context, id engine.TenantID) (*engine.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT state_json FROM tenant_states WHERE tenant_id = ?", string(id),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", engine.ErrTenantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state of %s: %w", id, err)
	}

	var st engine.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("corrupt state of %s: %w", id, err)
	}
	return &st, nil
}

// DeleteState forgets a tenant's snapshot. Its journal stays.
func (s *Store) DeleteState(ctx context.Context, id engine.TenantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM tenant_states WHERE tenant_id = ?", string(id))
	return err
}

// ListTenants returns every tenant with a snapshot, sorted.
func (s *Store) ListTenants(ctx context.Context) ([]engine.TenantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT tenant_id FROM tenant_states ORDER BY tenant_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var out []engine.TenantID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, engine.TenantID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// KARMA JOURNAL (engine.KarmaJournal interface)
// =============================================================================

// AppendKarmaEvents adds events atomically, in order.
func (s *Store) AppendKarmaEvents(ctx context.Context, events []engine.KarmaEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var seq int64
	if err := sqlTx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM karma_events").Scan(&seq); err != nil {
		return fmt.Errorf("failed to read journal position: %w", err)
	}

	for _, e := range events {
		seq++
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO karma_events
			(id, tenant_id, participant_id, kind, karma_before, karma_after, reference, occurred_at, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ID,
			string(e.TenantID),
			int64(e.Participant),
			string(e.Kind),
			e.Before.String(),
			e.After.String(),
			nullString(e.Reference),
			e.At.UTC().Format(time.RFC3339Nano),
			seq,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateEvent, e.ID)
			}
			return fmt.Errorf("failed to append karma event: %w", err)
		}
	}

	return sqlTx.Commit()
}

// KarmaEvents returns one participant's karma history in journal order.
func (s *Store) KarmaEvents(ctx context.Context, tenant engine.TenantID, participant engine.ParticipantID) ([]engine.KarmaEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, participant_id, kind, karma_before, karma_after, reference, occurred_at
		FROM karma_events
		WHERE tenant_id = ? AND participant_id = ?
		ORDER BY seq ASC
	`, string(tenant), int64(participant))
	if err != nil {
		return nil, fmt.Errorf("failed to query karma events: %w", err)
	}
	defer rows.Close()

	var events []engine.KarmaEvent
	for rows.Next() {
		e, err := scanKarmaEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanKarmaEvent(rows *sql.Rows) (engine.KarmaEvent, error) {
	var (
		e          engine.KarmaEvent
		tenantID   string
		pid        int64
		kind       string
		before     string
		after      string
		reference  sql.NullString
		occurredAt string
	)

	err := rows.Scan(&e.ID, &tenantID, &pid, &kind, &before, &after, &reference, &occurredAt)
	if err != nil {
		return e, fmt.Errorf("failed to scan karma event: %w", err)
	}

	e.TenantID = engine.TenantID(tenantID)
	e.Participant = engine.ParticipantID(pid)
	e.Kind = engine.KarmaEventKind(kind)
	e.Before, _ = decimal.NewFromString(before)
	e.After, _ = decimal.NewFromString(after)
	e.Reference = reference.String
	e.At, _ = time.Parse(time.RFC3339Nano, occurredAt)
	return e, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

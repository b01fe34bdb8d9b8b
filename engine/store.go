/*
store.go - Persistence hooks

PURPOSE:
  The engine does not care where state lives. A Store keeps one State per
  tenant (replaced wholesale after every mutating call); a KarmaJournal
  keeps the append-only history of karma changes.

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite
*/
package engine

import "context"

// Store persists tenant snapshots.
type Store interface {
	// LoadState returns ErrTenantNotFound for unknown tenants.
	LoadState(ctx context.Context, id TenantID) (*State, error)

	// SaveState replaces the tenant's snapshot.
	SaveState(ctx context.Context, s State) error

	// DeleteState forgets a tenant. Its karma journal is kept.
	DeleteState(ctx context.Context, id TenantID) error

	// ListTenants returns every tenant with a snapshot.
	ListTenants(ctx context.Context) ([]TenantID, error)
}

// KarmaJournal is an append-only log of karma changes.
// No Update, no Delete.
type KarmaJournal interface {
	AppendKarmaEvents(ctx context.Context, events []KarmaEvent) error
	KarmaEvents(ctx context.Context, tenant TenantID, participant ParticipantID) ([]KarmaEvent, error)
}

// Package store provides engine.Store implementations.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/warp/roster-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	states  map[engine.TenantID][]byte
	journal []engine.KarmaEvent
}

var (
	_ engine.Store        = (*Memory)(nil)
	_ engine.KarmaJournal = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{states: make(map[engine.TenantID][]byte)}
}

// SaveState stores the snapshot as JSON so callers never share memory with it.
func (m *Memory) SaveState(_ context.Context, s engine.State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.TenantID] = raw
	return nil
}

func (m *Memory) LoadState(_ context.Context, id engine.TenantID) (*engine.State, error) {
	m.mu.RLock()
	raw, ok := m.states[id]
	m.mu.RUnlock()
	if !ok {
		return nil, engine.ErrTenantNotFound
	}
	var s engine.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Memory) DeleteState(_ context.Context, id engine.TenantID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func (m *Memory) ListTenants(_ context.Context) ([]engine.TenantID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.TenantID, 0, len(m.states))
	for id := range m.states {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// AppendKarmaEvents appends to the journal. Append-only.
func (m *Memory) AppendKarmaEvents(_ context.Context, events []engine.KarmaEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal = append(m.journal, events...)
	return nil
}

func (m *Memory) KarmaEvents(_ context.Context, tenant engine.TenantID, participant engine.ParticipantID) ([]engine.KarmaEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.KarmaEvent
	for _, e := range m.journal {
		if e.TenantID == tenant && e.Participant == participant {
			out = append(out, e)
		}
	}
	return out, nil
}

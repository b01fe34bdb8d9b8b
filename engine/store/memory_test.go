package store_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/engine"
	"github.com/warp/roster-engine/engine/store"
)

func TestMemory_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.LoadState(ctx, "chat-1")
	assert.ErrorIs(t, err, engine.ErrTenantNotFound)

	k := decimal.NewFromInt(64)
	require.NoError(t, m.SaveState(ctx, engine.State{
		SchemaVersion: engine.CurrentSchemaVersion,
		TenantID:      "chat-1",
		Participants:  []engine.ParticipantRecord{{ID: 1, FirstName: "Ada", Karma: &k}},
	}))
	require.NoError(t, m.SaveState(ctx, engine.State{TenantID: "chat-0"}))

	s, err := m.LoadState(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, s.Participants, 1)
	assert.True(t, s.Participants[0].Karma.Equal(k))

	tenants, err := m.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []engine.TenantID{"chat-0", "chat-1"}, tenants)

	require.NoError(t, m.DeleteState(ctx, "chat-1"))
	_, err = m.LoadState(ctx, "chat-1")
	assert.ErrorIs(t, err, engine.ErrTenantNotFound)
}

func TestMemory_KarmaJournalFiltersByParticipant(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.AppendKarmaEvents(ctx, []engine.KarmaEvent{
		{ID: "a", TenantID: "chat-1", Participant: 1, Kind: engine.KarmaMissed},
		{ID: "b", TenantID: "chat-1", Participant: 2, Kind: engine.KarmaAttended},
		{ID: "c", TenantID: "chat-2", Participant: 1, Kind: engine.KarmaPunished},
		{ID: "d", TenantID: "chat-1", Participant: 1, Kind: engine.KarmaAttended},
	}))

	events, err := m.KarmaEvents(ctx, "chat-1", 1)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "d", events[1].ID)
}

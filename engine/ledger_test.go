package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func karma(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func newTestLedger() *engine.Ledger {
	return engine.NewLedger(karma(128), karma(8))
}

func withKarma(l *engine.Ledger, id engine.ParticipantID, k float64) {
	l.Restore(engine.Participant{ID: id, Profile: engine.Profile{FirstName: id.String()}, Karma: karma(k)})
}

func assertKarma(t *testing.T, l *engine.Ledger, id engine.ParticipantID, want float64) {
	t.Helper()
	p, err := l.Get(id)
	require.NoError(t, err)
	assert.True(t, p.Karma.Equal(karma(want)), "karma of %s: want %v, got %v", id, want, p.Karma)
}

// =============================================================================
// UPSERT
// =============================================================================

func TestLedger_UpsertCreatesWithInitialKarma(t *testing.T) {
	l := newTestLedger()
	l.Upsert(1, engine.Profile{FirstName: "Ada"})

	assertKarma(t, l, 1, 128)
}

func TestLedger_UpsertKeepsKarmaAndCounts(t *testing.T) {
	// GIVEN: A participant who lost karma and holds a seat
	l := newTestLedger()
	withKarma(l, 1, 32)
	p, _ := l.Get(1)
	p.AssignedCount = 2

	// WHEN: Their profile is refreshed
	l.Upsert(1, engine.Profile{FirstName: "Ada", LastName: "L"})

	// THEN: Only the profile changed
	assertKarma(t, l, 1, 32)
	p, _ = l.Get(1)
	assert.Equal(t, 2, p.AssignedCount)
	assert.Equal(t, "L", p.Profile.LastName)
}

func TestLedger_NameDisambiguatesSharedFirstNames(t *testing.T) {
	l := newTestLedger()
	l.Upsert(1, engine.Profile{FirstName: "Luca", LastName: "Rossi"})
	l.Upsert(2, engine.Profile{FirstName: "Luca", LastName: "Bianchi"})
	l.Upsert(3, engine.Profile{FirstName: "Marta"})

	assert.Equal(t, "Luca Rossi", l.Name(1))
	assert.Equal(t, "Luca Bianchi", l.Name(2))
	assert.Equal(t, "Marta", l.Name(3))
	assert.Equal(t, "99", l.Name(99))
}

func TestLedger_UnknownParticipant(t *testing.T) {
	l := newTestLedger()
	g := engine.NewRNG()
	g.Reseed(1)

	_, err := l.Punish(7, g, "")
	assert.ErrorIs(t, err, engine.ErrUnknownParticipant)
	assert.ErrorIs(t, l.IncreaseKarma(7, ""), engine.ErrUnknownParticipant)
	assert.ErrorIs(t, l.DecreaseKarma(7, ""), engine.ErrUnknownParticipant)
}

// =============================================================================
// PUNISHMENT
// =============================================================================

func TestPunish_FullKarmaNeverTriggers(t *testing.T) {
	l := newTestLedger()
	withKarma(l, 1, 128)
	g := engine.NewRNG()

	for seed := int64(0); seed < 500; seed++ {
		g.Reseed(seed)
		punished, err := l.Punish(1, g, "")
		require.NoError(t, err)
		require.False(t, punished, "seed %d", seed)
	}
}

func TestPunish_ZeroKarmaAlwaysTriggers(t *testing.T) {
	l := newTestLedger()
	withKarma(l, 1, 0)
	g := engine.NewRNG()

	for seed := int64(0); seed < 100; seed++ {
		g.Reseed(seed)
		punished, err := l.Punish(1, g, "")
		require.NoError(t, err)
		require.True(t, punished, "seed %d", seed)
	}
	assertKarma(t, l, 1, 0)
}

func TestPunish_DoublesKarmaCapped(t *testing.T) {
	// GIVEN: A participant at 100 karma and a seed that triggers
	l := newTestLedger()
	g := engine.NewRNG()
	var seed int64
	for ; ; seed++ {
		g.Reseed(seed)
		if g.Uniform01()*128 >= 100 {
			break
		}
	}
	withKarma(l, 1, 100)

	// WHEN: Punished with that seed
	g.Reseed(seed)
	punished, err := l.Punish(1, g, "")

	// THEN: Karma doubles but stays within the initial value
	require.NoError(t, err)
	assert.True(t, punished)
	assertKarma(t, l, 1, 128)
}

func TestPunish_SecondPunishmentLessLikely(t *testing.T) {
	// Over the same seeds, a once-punished participant (karma doubled) is
	// punished strictly fewer times than before.
	g := engine.NewRNG()
	count := func(k float64) int {
		n := 0
		for seed := int64(0); seed < 2000; seed++ {
			l := newTestLedger()
			withKarma(l, 1, k)
			g.Reseed(seed)
			if ok, _ := l.Punish(1, g, ""); ok {
				n++
			}
		}
		return n
	}

	first, second := count(32), count(64)
	assert.Greater(t, first, second)
}

func TestUnpunish_TakesBackBonusOnly(t *testing.T) {
	// GIVEN: A participant at 10 karma who was punished (10 -> 20)
	l := newTestLedger()
	withKarma(l, 1, 10)
	g := engine.NewRNG()
	var punished bool
	for seed := int64(0); !punished; seed++ {
		g.Reseed(seed)
		punished, _ = l.Punish(1, g, "")
	}
	assertKarma(t, l, 1, 20)

	// AND: Then attended a slot (+8)
	require.NoError(t, l.IncreaseKarma(1, ""))

	// WHEN: The punishment is taken back, twice
	require.NoError(t, l.Unpunish(1, ""))
	require.NoError(t, l.Unpunish(1, ""))

	// THEN: Only the punishment bonus was removed
	assertKarma(t, l, 1, 18)
}

func TestSettlePunishments_MakesBonusPermanent(t *testing.T) {
	l := newTestLedger()
	withKarma(l, 1, 0.5)
	g := engine.NewRNG()
	var punished bool
	for seed := int64(0); !punished; seed++ {
		g.Reseed(seed)
		punished, _ = l.Punish(1, g, "")
	}

	l.SettlePunishments()
	require.NoError(t, l.Unpunish(1, ""))

	assertKarma(t, l, 1, 1)
}

// =============================================================================
// ATTENDANCE FEEDBACK AND BOUNDS
// =============================================================================

func TestKarma_IncreaseCappedDecreaseHalves(t *testing.T) {
	l := newTestLedger()
	withKarma(l, 1, 124)

	require.NoError(t, l.IncreaseKarma(1, ""))
	assertKarma(t, l, 1, 128)

	require.NoError(t, l.DecreaseKarma(1, ""))
	assertKarma(t, l, 1, 64)
}

func TestKarma_StaysWithinBounds(t *testing.T) {
	l := newTestLedger()
	withKarma(l, 1, 128)
	g := engine.NewRNG()

	for i := int64(0); i < 400; i++ {
		switch i % 5 {
		case 0, 3:
			require.NoError(t, l.DecreaseKarma(1, ""))
		case 1:
			require.NoError(t, l.IncreaseKarma(1, ""))
		case 2:
			g.Reseed(i)
			_, err := l.Punish(1, g, "")
			require.NoError(t, err)
		case 4:
			require.NoError(t, l.Unpunish(1, ""))
		}
		p, _ := l.Get(1)
		require.False(t, p.Karma.IsNegative(), "step %d", i)
		require.False(t, p.Karma.GreaterThan(karma(128)), "step %d", i)
	}
}

func TestKarma_EventsAreBuffered(t *testing.T) {
	l := newTestLedger()
	l.Upsert(1, engine.Profile{FirstName: "Ada"})
	require.NoError(t, l.DecreaseKarma(1, "2026-10-19:0:1"))

	events := l.DrainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, engine.KarmaMissed, events[0].Kind)
	assert.True(t, events[0].Before.Equal(karma(128)))
	assert.True(t, events[0].After.Equal(karma(64)))
	assert.NotEmpty(t, events[0].ID)
	assert.Empty(t, l.DrainEvents())
}

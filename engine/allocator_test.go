package engine_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var monday = time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)

type fixture struct {
	ledger *engine.Ledger
	cycle  *engine.Cycle
	alloc  *engine.Allocator
}

func newFixture(t *testing.T, p engine.Policy, start time.Time) *fixture {
	t.Helper()
	l := engine.NewLedger(p.InitialKarma, p.KarmaBonus)
	return &fixture{ledger: l, cycle: engine.NewCycle(start, p), alloc: engine.NewAllocator(l)}
}

func singleSlotPolicy(capacity int) engine.Policy {
	p := engine.DefaultPolicy()
	p.Capacity = capacity
	p.Slots = p.Slots[:1]
	return p
}

func (f *fixture) declare(slot int, pref engine.Preference, who ...engine.ParticipantID) {
	for _, id := range who {
		if !f.ledger.Has(id) {
			f.ledger.Upsert(id, engine.Profile{FirstName: id.String()})
		}
		f.cycle.Slots[slot].Declare(id, pref)
	}
}

func (f *fixture) run(t *testing.T) *engine.Result {
	t.Helper()
	res, err := f.alloc.Run(f.cycle)
	require.NoError(t, err)
	return res
}

func karmaOf(l *engine.Ledger) map[engine.ParticipantID]string {
	out := make(map[engine.ParticipantID]string)
	for _, p := range l.Participants() {
		out[p.ID] = p.Karma.String()
	}
	return out
}

// =============================================================================
// MUST PHASE
// =============================================================================

func TestRun_MustCandidatesFillTheRoom(t *testing.T) {
	f := newFixture(t, singleSlotPolicy(3), monday)
	f.declare(0, engine.PrefMust, 1, 2, 3)

	res := f.run(t)

	assert.ElementsMatch(t, ids(1, 2, 3), res.Slots[0].Roster)
	assert.False(t, res.AnyPunished)
}

func TestRun_OverbookedMustAtFullKarmaIsTruncated(t *testing.T) {
	// GIVEN: Four people who must come, three seats, everyone at full karma
	f := newFixture(t, singleSlotPolicy(3), monday)
	f.declare(0, engine.PrefMust, 1, 2, 3, 4)

	// WHEN: Allocated
	res := f.run(t)

	// THEN: Three are seated by lot and nobody is punished
	assert.Len(t, res.Slots[0].Roster, 3)
	assert.Empty(t, res.Slots[0].Punished)
	for id, k := range karmaOf(f.ledger) {
		assert.Equal(t, "128", k, "karma of %s", id)
	}
}

func TestRun_ZeroKarmaMustIsPunishedFirst(t *testing.T) {
	// GIVEN: One of four must candidates has no karma left
	f := newFixture(t, singleSlotPolicy(3), monday)
	f.declare(0, engine.PrefMust, 1, 2, 3, 4)
	withKarma(f.ledger, 4, 0)

	// WHEN: Allocated
	res := f.run(t)

	// THEN: They lose the seat, the others keep theirs
	assert.ElementsMatch(t, ids(1, 2, 3), res.Slots[0].Roster)
	assert.Equal(t, ids(4), res.Slots[0].Punished)
	assert.True(t, res.AnyPunished)
}

func TestRun_CouldCandidatesSeatedWhenTheyAllFit(t *testing.T) {
	f := newFixture(t, singleSlotPolicy(3), monday)
	f.declare(0, engine.PrefMust, 1)
	f.declare(0, engine.PrefCould, 2, 3)
	f.declare(0, engine.PrefCannot, 4)

	res := f.run(t)

	assert.ElementsMatch(t, ids(1, 2, 3), res.Slots[0].Roster)
}

func TestRun_MustBeatsCould(t *testing.T) {
	f := newFixture(t, singleSlotPolicy(2), monday)
	f.declare(0, engine.PrefCould, 1, 2, 3)
	f.declare(0, engine.PrefMust, 4, 5)

	res := f.run(t)

	assert.ElementsMatch(t, ids(4, 5), res.Slots[0].Roster)
	assert.Empty(t, res.Slots[0].Punished)
}

// =============================================================================
// COULD RUN-OFF
// =============================================================================

func TestRun_CouldRunOffIsReproducible(t *testing.T) {
	// GIVEN: Five people who could come, three seats
	build := func() *fixture {
		f := newFixture(t, singleSlotPolicy(3), monday)
		f.declare(0, engine.PrefCould, 1, 2, 3, 4, 5)
		return f
	}

	// WHEN: The same input is allocated by two independent engines
	a, b := build().run(t), build().run(t)

	// THEN: Both agree
	assert.Len(t, a.Slots[0].Roster, 3)
	assert.Equal(t, a.Slots[0].Roster, b.Slots[0].Roster)
}

func TestRun_RunOffFavoursPeopleWithFewerSeats(t *testing.T) {
	// GIVEN: Person 1 already holds Monday morning as a must
	p := engine.DefaultPolicy()
	f := newFixture(t, p, monday)
	f.declare(0, engine.PrefMust, 1)

	// AND: Four people could come on Monday afternoon, three seats
	f.declare(1, engine.PrefCould, 1, 2, 3, 4)

	// WHEN: Allocated
	res := f.run(t)

	// THEN: The three without a seat this week win
	assert.ElementsMatch(t, ids(2, 3, 4), res.Roster("mon_pm"))
	assert.Equal(t, 1, res.Assigned[1])
}

func TestRun_RunOffIsFairOverManyWeeks(t *testing.T) {
	// Two equal candidates competing for one seat should each win about
	// half of the weeks.
	wins := 0
	const weeks = 400
	for w := 0; w < weeks; w++ {
		f := newFixture(t, singleSlotPolicy(1), monday.AddDate(0, 0, 7*w))
		f.declare(0, engine.PrefCould, 1, 2)
		res := f.run(t)
		require.Len(t, res.Slots[0].Roster, 1)
		if res.Slots[0].Roster[0] == 1 {
			wins++
		}
	}

	rate := float64(wins) / weeks
	assert.InDelta(t, 0.5, rate, 0.1, "win rate %.2f", rate)
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestRun_ClosedRoomSeatsNobody(t *testing.T) {
	// GIVEN: A closed room, one must candidate without karma
	f := newFixture(t, singleSlotPolicy(0), monday)
	f.declare(0, engine.PrefMust, 1, 2)
	f.declare(0, engine.PrefCould, 3)
	withKarma(f.ledger, 1, 0)

	// WHEN: Allocated
	res := f.run(t)

	// THEN: Nobody is seated; the sweep still punishes the karma-less must
	assert.Empty(t, res.Slots[0].Roster)
	assert.Equal(t, ids(1), res.Slots[0].Punished)
	assert.True(t, res.AnyPunished)
}

func TestRun_ClosedRoomAtFullKarmaPunishesNobody(t *testing.T) {
	f := newFixture(t, singleSlotPolicy(0), monday)
	f.declare(0, engine.PrefMust, 1, 2)

	res := f.run(t)

	assert.Empty(t, res.Slots[0].Roster)
	assert.Empty(t, res.Slots[0].Punished)
	assert.False(t, res.AnyPunished)
}

func TestRun_NoCandidates(t *testing.T) {
	f := newFixture(t, engine.DefaultPolicy(), monday)

	res := f.run(t)

	require.Len(t, res.Slots, 10)
	require.Len(t, res.Records, 10)
	for _, s := range res.Slots {
		assert.Empty(t, s.Roster)
	}
}

func TestRun_RecordsFreezeRosters(t *testing.T) {
	f := newFixture(t, engine.DefaultPolicy(), monday)
	f.declare(9, engine.PrefMust, 1)

	res := f.run(t)

	last := res.Records[9]
	assert.Equal(t, "fri_pm", last.SlotID)
	assert.Equal(t, ids(1), last.Roster)
	assert.Equal(t, time.Date(2026, time.October, 23, 18, 0, 0, 0, time.UTC).UnixMilli(), last.Key())
}

// =============================================================================
// PROPERTIES - Random inputs
// =============================================================================

func randomFixture(t *testing.T, seed uint64) *fixture {
	r := rand.New(rand.NewPCG(seed, seed+1))
	p := engine.DefaultPolicy()
	p.Capacity = r.IntN(4)
	f := newFixture(t, p, monday.AddDate(0, 0, 7*r.IntN(52)))

	people := 2 + r.IntN(8)
	prefs := []engine.Preference{engine.PrefMust, engine.PrefCould, engine.PrefCannot}
	for id := 1; id <= people; id++ {
		pid := engine.ParticipantID(id * 1000)
		withKarma(f.ledger, pid, float64(r.IntN(129)))
		for s := range f.cycle.Slots {
			if r.IntN(3) > 0 {
				f.declare(s, prefs[r.IntN(3)], pid)
			}
		}
	}
	return f
}

func TestRun_RandomInputsRespectCapacityAndPriority(t *testing.T) {
	for seed := uint64(0); seed < 200; seed++ {
		f := randomFixture(t, seed)
		res := f.run(t)

		for _, s := range f.cycle.Slots {
			require.LessOrEqual(t, len(s.Roster), s.Capacity, "seed %d slot %s", seed, s.ID)

			seen := make(map[engine.ParticipantID]bool)
			couldSeated := false
			for _, id := range s.Roster {
				require.False(t, seen[id], "seed %d: %s seated twice", seed, id)
				seen[id] = true
				pref, ok := s.Preference(id)
				require.True(t, ok)
				require.NotEqual(t, engine.PrefCannot, pref, "seed %d", seed)
				if pref == engine.PrefCould {
					couldSeated = true
				}
			}

			if couldSeated {
				must, _ := s.Candidates()
				for _, id := range must {
					assert.True(t, s.InRoster(id) || containsID(s.Punished, id),
						"seed %d slot %s: must %s lost to a could", seed, s.ID, id)
				}
			}
		}

		for _, p := range f.ledger.Participants() {
			require.False(t, p.Karma.IsNegative())
			require.False(t, p.Karma.GreaterThan(karma(128)))
			assert.Equal(t, res.Assigned[p.ID], p.AssignedCount)
		}
	}
}

func TestRun_IsIdempotentIncludingKarma(t *testing.T) {
	for seed := uint64(0); seed < 100; seed++ {
		f := randomFixture(t, seed)

		first := f.run(t)
		karmaAfterFirst := karmaOf(f.ledger)
		second := f.run(t)

		for i := range first.Slots {
			require.Equal(t, first.Slots[i].Roster, second.Slots[i].Roster, "seed %d", seed)
			require.Equal(t, first.Slots[i].Punished, second.Slots[i].Punished, "seed %d", seed)
		}
		require.Equal(t, karmaAfterFirst, karmaOf(f.ledger), "seed %d", seed)
	}
}

func TestRun_RedeclaringSameValueIsNoChange(t *testing.T) {
	f := newFixture(t, singleSlotPolicy(3), monday)
	f.declare(0, engine.PrefMust, 1)

	assert.False(t, f.cycle.Slots[0].Declare(1, engine.PrefMust))
}

func containsID(list []engine.ParticipantID, id engine.ParticipantID) bool {
	for _, x := range list {
		if x == id {
			return true
		}
	}
	return false
}

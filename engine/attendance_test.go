package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/engine"
)

func allocatedWeek(t *testing.T) (*fixture, *engine.Attendance) {
	t.Helper()
	f := newFixture(t, engine.DefaultPolicy(), monday)
	f.declare(0, engine.PrefMust, 1, 2)
	f.declare(1, engine.PrefCould, 3)
	res := f.run(t)

	a := engine.NewAttendance()
	a.Record(res.Records...)
	return f, a
}

func TestAttendance_DueAfterSlotEnd(t *testing.T) {
	_, a := allocatedWeek(t)

	// Monday morning ends at 14:00
	assert.Empty(t, a.Due(time.Date(2026, time.October, 19, 13, 0, 0, 0, time.UTC)))

	due := a.Due(time.Date(2026, time.October, 19, 14, 30, 0, 0, time.UTC))
	require.Len(t, due, 2)
	assert.Equal(t, "mon_am", due[0].SlotID)
	assert.ElementsMatch(t, ids(1, 2), []engine.ParticipantID{due[0].Ref.Participant, due[1].Ref.Participant})

	// Consumed: asking again yields nothing new
	assert.Empty(t, a.Due(time.Date(2026, time.October, 19, 14, 30, 0, 0, time.UTC)))
	assert.Len(t, a.PendingConfirmations(), 2)
}

func TestAttendance_ConfirmMovesKarmaOnce(t *testing.T) {
	// GIVEN: Monday's prompts are out
	f, a := allocatedWeek(t)
	due := a.Due(time.Date(2026, time.October, 19, 19, 0, 0, 0, time.UTC))
	require.Len(t, due, 3)

	var ref1, ref3 engine.AttendanceRef
	for _, c := range due {
		switch c.Ref.Participant {
		case 1:
			ref1 = c.Ref
		case 3:
			ref3 = c.Ref
		}
	}

	// WHEN: Person 1 did not show up and person 3 did
	require.NoError(t, a.Confirm(f.ledger, ref1, false))
	withKarma(f.ledger, 3, 100)
	require.NoError(t, a.Confirm(f.ledger, ref3, true))

	// THEN: Karma follows the answers
	assertKarma(t, f.ledger, 1, 64)
	assertKarma(t, f.ledger, 3, 108)

	// AND: A prompt cannot be answered twice
	assert.ErrorIs(t, a.Confirm(f.ledger, ref1, false), engine.ErrUnknownSlot)
	assertKarma(t, f.ledger, 1, 64)
}

func TestAttendance_ConfirmUnknownParticipant(t *testing.T) {
	_, a := allocatedWeek(t)
	a.Due(time.Date(2026, time.October, 19, 19, 0, 0, 0, time.UTC))
	ref := a.PendingConfirmations()[0].Ref

	err := a.Confirm(newTestLedger(), ref, true)

	assert.ErrorIs(t, err, engine.ErrUnknownParticipant)
	assert.Len(t, a.PendingConfirmations(), 3, "prompt stays pending")
}

func TestAttendance_ReallocationOverwritesRecords(t *testing.T) {
	f, a := allocatedWeek(t)

	f.declare(0, engine.PrefCannot, 2)
	a.Record(f.run(t).Records...)

	all := a.All()
	require.Len(t, all, 10)
	assert.Equal(t, ids(1), all[0].Roster)
}

func TestAttendance_DiscardCycleKeepsOtherWeeks(t *testing.T) {
	_, a := allocatedWeek(t)
	next := newFixture(t, engine.DefaultPolicy(), monday.AddDate(0, 0, 7))
	a.Record(next.run(t).Records...)
	require.Len(t, a.All(), 20)

	a.DiscardCycle("2026-10-26")

	assert.Len(t, a.All(), 10)
	assert.Len(t, a.Before(time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC)), 2)
}

func TestAttendanceRef_RoundTrip(t *testing.T) {
	ref := engine.AttendanceRef{CycleID: "2026-10-19", SlotIndex: 7, Participant: 42}

	parsed, err := engine.ParseAttendanceRef(ref.String())

	require.NoError(t, err)
	assert.Equal(t, ref, parsed)

	_, err = engine.ParseAttendanceRef("2026-10-19:x")
	assert.ErrorIs(t, err, engine.ErrUnknownSlot)
}

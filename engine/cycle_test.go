package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/engine"
)

func at(month time.Month, day, hour, min int) time.Time {
	return time.Date(2026, month, day, hour, min, 0, 0, time.UTC)
}

func TestNextCycleStart(t *testing.T) {
	p := engine.DefaultPolicy()
	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{"midweek opens next week", at(time.October, 14, 10, 0), at(time.October, 19, 0, 0)},
		{"just before the deadline", at(time.October, 16, 11, 59), at(time.October, 19, 0, 0)},
		{"at the deadline jumps a week", at(time.October, 16, 12, 0), at(time.October, 26, 0, 0)},
		{"weekend after the deadline", at(time.October, 18, 9, 0), at(time.October, 26, 0, 0)},
		{"monday of the judged week", at(time.October, 19, 8, 0), at(time.October, 26, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(engine.NextCycleStart(tt.ref, p)),
				"want %s, got %s", tt.want, engine.NextCycleStart(tt.ref, p))
		})
	}
}

func TestNewCycle_BuildsTenHalfDays(t *testing.T) {
	p := engine.DefaultPolicy()
	c := engine.NewCycle(at(time.October, 19, 0, 0), p)

	require.Len(t, c.Slots, 10)
	assert.Equal(t, "2026-10-19", c.ID)
	assert.True(t, at(time.October, 16, 12, 0).Equal(c.Deadline))

	monPM := c.Slots[1]
	assert.Equal(t, "mon_pm", monPM.ID)
	assert.Equal(t, 1, monPM.Index)
	assert.Equal(t, 3, monPM.Capacity)
	assert.True(t, at(time.October, 19, 14, 0).Equal(monPM.Start))
	assert.True(t, at(time.October, 19, 18, 0).Equal(monPM.End))

	friPM := c.Slots[9]
	assert.Equal(t, "fri_pm", friPM.ID)
	assert.True(t, at(time.October, 23, 18, 0).Equal(friPM.End))
}

func TestCycle_CheckOpen(t *testing.T) {
	p := engine.DefaultPolicy()
	c := engine.NewCycle(at(time.October, 19, 0, 0), p)

	assert.NoError(t, c.CheckOpen(at(time.October, 16, 11, 0), p))

	err := c.CheckOpen(at(time.October, 16, 12, 0), p)
	assert.ErrorIs(t, err, engine.ErrStaleCycle)
	var stale *engine.StaleCycleError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "2026-10-19", stale.CycleID)
}

func TestCycle_SlotLookup(t *testing.T) {
	c := engine.NewCycle(at(time.October, 19, 0, 0), engine.DefaultPolicy())

	s, err := c.SlotByID("wed_am")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Index)

	_, err = c.SlotByID("sat_am")
	assert.ErrorIs(t, err, engine.ErrUnknownSlot)
	_, err = c.Slot(10)
	assert.ErrorIs(t, err, engine.ErrUnknownSlot)
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, engine.DefaultPolicy().Validate())

	p := engine.DefaultPolicy()
	p.Slots = append(p.Slots, p.Slots[0])
	assert.Error(t, p.Validate(), "duplicate slot id")

	p = engine.DefaultPolicy()
	p.DeadlineOffset = time.Hour
	assert.Error(t, p.Validate())
}

func TestSlot_DeclareReportsChange(t *testing.T) {
	s := &engine.Slot{ID: "mon_am", Capacity: 3}

	assert.True(t, s.Declare(1, engine.PrefMust))
	assert.False(t, s.Declare(1, engine.PrefMust), "same value is a no-op")
	assert.True(t, s.Declare(1, engine.PrefCould))

	s.Declare(3, engine.PrefMust)
	s.Declare(2, engine.PrefCannot)
	must, could := s.Candidates()
	assert.Equal(t, ids(3), must)
	assert.Equal(t, ids(1), could)
}

func TestParsePreference(t *testing.T) {
	p, err := engine.ParsePreference(" Must ")
	require.NoError(t, err)
	assert.Equal(t, engine.PrefMust, p)

	_, err = engine.ParsePreference("maybe")
	assert.ErrorIs(t, err, engine.ErrInvalidPreference)
}

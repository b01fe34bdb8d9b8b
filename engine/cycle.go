/*
cycle.go - Weekly cycle and its deadline policy

PURPOSE:
  A cycle is the set of slots of one week. People declare preferences for
  next week until the deadline (by default Friday noon of the current
  week); after that the week's rosters are frozen and the next /judge opens
  the week after.

WEEK SELECTION:
  NextCycleStart(ref) = the Monday after the week containing
  ref - DeadlineOffset, at midnight in the policy location.

  DeadlineOffset is negative (relative to that Monday), so shifting ref
  forward by it makes the selection jump one week exactly at the deadline:

    ref = Wed 10:00   -> shifted Fri 22:00 -> next Monday
    ref = Fri 12:00   -> shifted Mon 00:00 -> the Monday after

SEE ALSO:
  - allocator.go: Computes the rosters of a cycle
  - factory/policy.go: Builds a Policy from JSON
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY - Room and karma parameters
// =============================================================================

// SlotTemplate describes one weekly slot relative to its Monday.
type SlotTemplate struct {
	ID    string
	Label string
	Day   int           // 0 = Monday
	Start time.Duration // since local midnight
	End   time.Duration
}

type Policy struct {
	RoomName       string
	Capacity       int
	InitialKarma   decimal.Decimal
	KarmaBonus     decimal.Decimal
	DeadlineOffset time.Duration // relative to the cycle's Monday, negative
	ReminderLead   time.Duration // reminder this long before the deadline
	Location       *time.Location
	Slots          []SlotTemplate
}

// DefaultPolicy is a three-seat room, open on weekday mornings and
// afternoons, judged until Friday noon of the previous week.
func DefaultPolicy() Policy {
	return Policy{
		RoomName:       "the Office",
		Capacity:       3,
		InitialKarma:   decimal.NewFromInt(128),
		KarmaBonus:     decimal.NewFromInt(8),
		DeadlineOffset: -(2*24 + 12) * time.Hour,
		ReminderLead:   150 * time.Minute,
		Location:       time.UTC,
		Slots:          DefaultSlotTemplates(),
	}
}

// DefaultSlotTemplates returns mon_am .. fri_pm.
func DefaultSlotTemplates() []SlotTemplate {
	days := []string{"mon", "tue", "wed", "thu", "fri"}
	names := []string{"Mon", "Tue", "Wed", "Thu", "Fri"}
	out := make([]SlotTemplate, 0, 2*len(days))
	for d := range days {
		out = append(out,
			SlotTemplate{ID: days[d] + "_am", Label: names[d] + " am", Day: d, Start: 9 * time.Hour, End: 14 * time.Hour},
			SlotTemplate{ID: days[d] + "_pm", Label: names[d] + " pm", Day: d, Start: 14 * time.Hour, End: 18 * time.Hour},
		)
	}
	return out
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if p.Capacity < 0 {
		return fmt.Errorf("policy: negative capacity %d", p.Capacity)
	}
	if !p.InitialKarma.IsPositive() {
		return fmt.Errorf("policy: initial karma must be positive")
	}
	if p.KarmaBonus.IsNegative() {
		return fmt.Errorf("policy: karma bonus must not be negative")
	}
	if p.DeadlineOffset > 0 {
		return fmt.Errorf("policy: deadline offset must not be after the cycle start")
	}
	if len(p.Slots) == 0 {
		return fmt.Errorf("policy: no slots")
	}
	seen := make(map[string]bool)
	for _, s := range p.Slots {
		if s.ID == "" || seen[s.ID] {
			return fmt.Errorf("policy: missing or duplicate slot id %q", s.ID)
		}
		seen[s.ID] = true
		if s.End <= s.Start {
			return fmt.Errorf("policy: slot %s ends before it starts", s.ID)
		}
		if s.Day < 0 || s.Day > 6 {
			return fmt.Errorf("policy: slot %s has day %d outside the week", s.ID, s.Day)
		}
	}
	return nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// NextCycleStart returns the Monday of the week that is open for
// declarations at ref.
func NextCycleStart(ref time.Time, p Policy) time.Time {
	loc := p.location()
	d := ref.In(loc).Add(-p.DeadlineOffset)
	wd := int(d.Weekday())
	diff := 1 - wd + 7
	if wd == 0 {
		diff = -6 + 7
	}
	return time.Date(d.Year(), d.Month(), d.Day()+diff, 0, 0, 0, 0, loc)
}

// =============================================================================
// CYCLE
// =============================================================================

type Cycle struct {
	ID       string
	Start    time.Time
	Deadline time.Time
	Slots    []*Slot

	ReminderSent bool // deadline reminder already posted
	Finalized    bool // frozen rosters already announced
}

// CycleID is the Monday's date.
func CycleID(start time.Time) string { return start.Format("2006-01-02") }

// NewCycle builds fresh, empty slots for the week starting at start.
func NewCycle(start time.Time, p Policy) *Cycle {
	loc := p.location()
	start = start.In(loc)
	c := &Cycle{
		ID:       CycleID(start),
		Start:    start,
		Deadline: start.Add(p.DeadlineOffset),
		Slots:    make([]*Slot, len(p.Slots)),
	}
	for i, t := range p.Slots {
		day := time.Date(start.Year(), start.Month(), start.Day()+t.Day, 0, 0, 0, 0, loc)
		c.Slots[i] = &Slot{
			ID:          t.ID,
			Label:       t.Label,
			Index:       i,
			Start:       day.Add(t.Start),
			End:         day.Add(t.End),
			Capacity:    p.Capacity,
			Preferences: make(map[ParticipantID]Preference),
		}
	}
	return c
}

// Slot returns the slot at index.
func (c *Cycle) Slot(index int) (*Slot, error) {
	if index < 0 || index >= len(c.Slots) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownSlot, index)
	}
	return c.Slots[index], nil
}

// SlotByID returns the slot with the given template id.
func (c *Cycle) SlotByID(id string) (*Slot, error) {
	for _, s := range c.Slots {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, id)
}

// CheckOpen returns a StaleCycleError once the cycle no longer accepts
// declarations.
func (c *Cycle) CheckOpen(now time.Time, p Policy) error {
	if NextCycleStart(now, p).Equal(c.Start) {
		return nil
	}
	return &StaleCycleError{CycleID: c.ID, Deadline: c.Deadline, At: now}
}

package room

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/roster-engine/engine"
)

// =============================================================================
// READ MODELS - Name-resolved copies handed to transports
// =============================================================================

// Seat is a participant as shown to humans.
type Seat struct {
	ID   engine.ParticipantID
	Name string
}

type SlotView struct {
	Index    int
	ID       string
	Label    string
	Start    time.Time
	End      time.Time
	Capacity int
	Must     []Seat
	Could    []Seat
	Cannot   []Seat
	Roster   []Seat
	Punished []Seat
}

type CycleView struct {
	TenantID engine.TenantID
	RoomName string
	ID       string
	Start    time.Time
	Deadline time.Time
	Open     bool
	Slots    []SlotView
}

// CycleStart is the outcome of StartCycle.
type CycleStart struct {
	Cycle CycleView
	// Renewed is false when the current week's cycle was returned as is.
	Renewed bool
	// Previous is the id of the replaced cycle, empty if none.
	Previous string
}

// Outcome is the outcome of one declaration.
type Outcome struct {
	Changed     bool
	AnyPunished bool
	Cycle       CycleView
}

type KarmaEntry struct {
	ID    engine.ParticipantID
	Name  string
	Karma decimal.Decimal
}

// Prompt is one attendance question.
type Prompt struct {
	Ref       engine.AttendanceRef
	Name      string
	Username  string
	SlotID    string
	SlotLabel string
	SlotEnd   time.Time
}

// Verdict lists the frozen rosters of the week in progress.
type Verdict struct {
	WeekOf time.Time
	Slots  []VerdictSlot
}

type VerdictSlot struct {
	Label  string
	Start  time.Time
	End    time.Time
	Roster []Seat
}

// =============================================================================
// BUILDERS
// =============================================================================

func seats(l *engine.Ledger, ids []engine.ParticipantID) []Seat {
	out := make([]Seat, 0, len(ids))
	for _, id := range ids {
		out = append(out, Seat{ID: id, Name: l.Name(id)})
	}
	return out
}

func cycleView(t *engine.Tenant, p engine.Policy, now time.Time) CycleView {
	c := t.Cycle
	v := CycleView{
		TenantID: t.ID,
		RoomName: p.RoomName,
		ID:       c.ID,
		Start:    c.Start,
		Deadline: c.Deadline,
		Open:     c.CheckOpen(now, p) == nil,
	}
	for _, s := range c.Slots {
		must, could := s.Candidates()
		var cannot []engine.ParticipantID
		for _, id := range s.Pretenders() {
			if pref, _ := s.Preference(id); pref == engine.PrefCannot {
				cannot = append(cannot, id)
			}
		}
		v.Slots = append(v.Slots, SlotView{
			Index:    s.Index,
			ID:       s.ID,
			Label:    s.Label,
			Start:    s.Start,
			End:      s.End,
			Capacity: s.Capacity,
			Must:     seats(t.Ledger, must),
			Could:    seats(t.Ledger, could),
			Cannot:   seats(t.Ledger, cannot),
			Roster:   seats(t.Ledger, s.Roster),
			Punished: seats(t.Ledger, s.Punished),
		})
	}
	return v
}

func prompt(l *engine.Ledger, c engine.Confirmation) Prompt {
	pr := Prompt{
		Ref:       c.Ref,
		Name:      l.Name(c.Ref.Participant),
		SlotID:    c.SlotID,
		SlotLabel: c.SlotLabel,
		SlotEnd:   c.SlotEnd,
	}
	if p, err := l.Get(c.Ref.Participant); err == nil {
		pr.Username = p.Profile.Username
	}
	return pr
}

func karmaEntry(l *engine.Ledger, p *engine.Participant) KarmaEntry {
	return KarmaEntry{ID: p.ID, Name: l.Name(p.ID), Karma: p.Karma}
}

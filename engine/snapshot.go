/*
snapshot.go - Versioned persisted state of one tenant

PURPOSE:
  A tenant's whole state (ledger, active cycle, attendance book) is written
  after every mutating call and read back at startup. The persisted shape is
  an explicit, versioned record; it is never trusted blindly:

    - SchemaVersion 0 is the legacy status-file shape (no version field,
      karma and capacity possibly missing)
    - Migrate() upgrades to CurrentSchemaVersion, then fills defaults from
      the policy for every version
    - Slot indexes follow slot order; unknown preferences are rejected
    - Unknown future versions are rejected

SEE ALSO:
  - store.go: Store interface that persists State
  - store/sqlite/sqlite.go: SQLite implementation
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const CurrentSchemaVersion = 1

// =============================================================================
// PERSISTED RECORDS
// =============================================================================

type State struct {
	SchemaVersion int                  `json:"schema_version"`
	TenantID      TenantID             `json:"tenant_id"`
	Participants  []ParticipantRecord  `json:"participants"`
	Cycle         *CycleRecord         `json:"cycle,omitempty"`
	Records       []AttendanceRecord   `json:"attendance_records,omitempty"`
	Pending       []ConfirmationRecord `json:"pending_confirmations,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type ParticipantRecord struct {
	ID            ParticipantID    `json:"id,string"`
	Username      string           `json:"username,omitempty"`
	FirstName     string           `json:"first_name,omitempty"`
	LastName      string           `json:"last_name,omitempty"`
	Karma         *decimal.Decimal `json:"karma,omitempty"`
	PunishBonus   decimal.Decimal  `json:"punish_bonus"`
	AssignedCount int              `json:"assigned_count"`
}

type CycleRecord struct {
	ID           string       `json:"id"`
	Start        time.Time    `json:"start"`
	Deadline     time.Time    `json:"deadline"`
	ReminderSent bool         `json:"reminder_sent"`
	Finalized    bool         `json:"finalized"`
	Slots        []SlotRecord `json:"slots"`
}

type SlotRecord struct {
	ID          string                       `json:"id"`
	Label       string                       `json:"label"`
	Index       int                          `json:"index"`
	Start       time.Time                    `json:"start"`
	End         time.Time                    `json:"end"`
	Capacity    *int                         `json:"capacity,omitempty"`
	Preferences map[ParticipantID]Preference `json:"preferences"`
	Roster      []ParticipantID              `json:"roster"`
	Punished    []ParticipantID              `json:"punished"`
}

type ConfirmationRecord struct {
	CycleID     string        `json:"cycle_id"`
	SlotIndex   int           `json:"slot_index"`
	SlotID      string        `json:"slot_id"`
	SlotLabel   string        `json:"slot_label"`
	SlotEnd     time.Time     `json:"slot_end"`
	Participant ParticipantID `json:"participant,string"`
}

// Migrate upgrades s in place to CurrentSchemaVersion, then fills and checks
// the fields every version must have.
func (s *State) Migrate(p Policy) error {
	if s.SchemaVersion > CurrentSchemaVersion {
		return fmt.Errorf("state of tenant %s has schema version %d, newest known is %d",
			s.TenantID, s.SchemaVersion, CurrentSchemaVersion)
	}

	// 0 -> 1: the legacy file has no cycle id nor deadline.
	if s.SchemaVersion == 0 && s.Cycle != nil {
		if s.Cycle.ID == "" {
			s.Cycle.ID = CycleID(s.Cycle.Start)
		}
		if s.Cycle.Deadline.IsZero() {
			s.Cycle.Deadline = s.Cycle.Start.Add(p.DeadlineOffset)
		}
	}
	s.SchemaVersion = CurrentSchemaVersion

	return s.normalize(p)
}

func (s *State) normalize(p Policy) error {
	for i := range s.Participants {
		if s.Participants[i].Karma == nil {
			k := p.InitialKarma
			s.Participants[i].Karma = &k
		}
	}
	if s.Cycle == nil {
		return nil
	}
	for i := range s.Cycle.Slots {
		sl := &s.Cycle.Slots[i]
		if sl.Capacity == nil {
			c := p.Capacity
			sl.Capacity = &c
		}
		if *sl.Capacity < 0 {
			return fmt.Errorf("state of tenant %s: slot %s has capacity %d", s.TenantID, sl.ID, *sl.Capacity)
		}
		// The position in the cycle is the index.
		sl.Index = i
		prefs := make(map[ParticipantID]Preference, len(sl.Preferences))
		for id, raw := range sl.Preferences {
			pref, err := ParsePreference(string(raw))
			if err != nil {
				return fmt.Errorf("state of tenant %s: slot %s, participant %s: %w", s.TenantID, sl.ID, id, err)
			}
			prefs[id] = pref
		}
		sl.Preferences = prefs
	}
	return nil
}

// =============================================================================
// TENANT - Runtime state of one chat
// =============================================================================

type Tenant struct {
	ID         TenantID
	Ledger     *Ledger
	Cycle      *Cycle // nil until the first cycle is started
	Attendance *Attendance
}

func NewTenant(id TenantID, p Policy) *Tenant {
	return &Tenant{
		ID:         id,
		Ledger:     NewLedger(p.InitialKarma, p.KarmaBonus),
		Attendance: NewAttendance(),
	}
}

// Snapshot renders the tenant as a persistable State.
func (t *Tenant) Snapshot(now time.Time) State {
	s := State{
		SchemaVersion: CurrentSchemaVersion,
		TenantID:      t.ID,
		UpdatedAt:     now.UTC(),
	}
	for _, p := range t.Ledger.Participants() {
		k := p.Karma
		s.Participants = append(s.Participants, ParticipantRecord{
			ID:            p.ID,
			Username:      p.Profile.Username,
			FirstName:     p.Profile.FirstName,
			LastName:      p.Profile.LastName,
			Karma:         &k,
			PunishBonus:   p.PunishBonus,
			AssignedCount: p.AssignedCount,
		})
	}
	if c := t.Cycle; c != nil {
		cr := &CycleRecord{
			ID:           c.ID,
			Start:        c.Start,
			Deadline:     c.Deadline,
			ReminderSent: c.ReminderSent,
			Finalized:    c.Finalized,
		}
		for _, sl := range c.Slots {
			capacity := sl.Capacity
			prefs := make(map[ParticipantID]Preference, len(sl.Preferences))
			for id, pref := range sl.Preferences {
				prefs[id] = pref
			}
			cr.Slots = append(cr.Slots, SlotRecord{
				ID:          sl.ID,
				Label:       sl.Label,
				Index:       sl.Index,
				Start:       sl.Start,
				End:         sl.End,
				Capacity:    &capacity,
				Preferences: prefs,
				Roster:      append([]ParticipantID(nil), sl.Roster...),
				Punished:    append([]ParticipantID(nil), sl.Punished...),
			})
		}
		s.Cycle = cr
	}
	s.Records = t.Attendance.All()
	for _, c := range t.Attendance.PendingConfirmations() {
		s.Pending = append(s.Pending, ConfirmationRecord{
			CycleID:     c.Ref.CycleID,
			SlotIndex:   c.Ref.SlotIndex,
			SlotID:      c.SlotID,
			SlotLabel:   c.SlotLabel,
			SlotEnd:     c.SlotEnd,
			Participant: c.Ref.Participant,
		})
	}
	return s
}

// RestoreTenant migrates s and rebuilds the runtime tenant.
func RestoreTenant(s State, p Policy) (*Tenant, error) {
	if err := s.Migrate(p); err != nil {
		return nil, err
	}
	t := NewTenant(s.TenantID, p)
	for _, r := range s.Participants {
		t.Ledger.Restore(Participant{
			ID:            r.ID,
			Profile:       Profile{Username: r.Username, FirstName: r.FirstName, LastName: r.LastName},
			Karma:         *r.Karma,
			PunishBonus:   r.PunishBonus,
			AssignedCount: r.AssignedCount,
		})
	}
	if cr := s.Cycle; cr != nil {
		c := &Cycle{
			ID:           cr.ID,
			Start:        cr.Start,
			Deadline:     cr.Deadline,
			ReminderSent: cr.ReminderSent,
			Finalized:    cr.Finalized,
		}
		for _, sr := range cr.Slots {
			c.Slots = append(c.Slots, &Slot{
				ID:          sr.ID,
				Label:       sr.Label,
				Index:       sr.Index,
				Start:       sr.Start,
				End:         sr.End,
				Capacity:    *sr.Capacity,
				Preferences: sr.Preferences,
				Roster:      sr.Roster,
				Punished:    sr.Punished,
			})
		}
		t.Cycle = c
	}
	t.Attendance.Record(s.Records...)
	for _, r := range s.Pending {
		ref := AttendanceRef{CycleID: r.CycleID, SlotIndex: r.SlotIndex, Participant: r.Participant}
		t.Attendance.Pending[ref] = Confirmation{Ref: ref, SlotID: r.SlotID, SlotLabel: r.SlotLabel, SlotEnd: r.SlotEnd}
	}
	return t, nil
}

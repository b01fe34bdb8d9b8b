/*
attendance.go - Attendance records and karma feedback

PURPOSE:
  Every allocation pass freezes each slot's roster into an attendance
  record keyed by the slot's end. Once a slot has ended its record turns
  into one confirmation prompt per rostered participant; a human answers
  each prompt and the answer moves karma:

    attended  -> IncreaseKarma (+bonus, capped)
    no-show   -> DecreaseKarma (halved)

  Feedback is never automatic. A prompt can be answered once.

LIFECYCLE:
  Record (allocation) -> Due (slot ended) -> Confirm (human answer)
*/
package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ATTENDANCE RECORD - Frozen roster of one slot
// =============================================================================

type AttendanceRecord struct {
	CycleID   string          `json:"cycle_id"`
	SlotID    string          `json:"slot_id"`
	SlotLabel string          `json:"slot_label"`
	SlotIndex int             `json:"slot_index"`
	SlotStart time.Time       `json:"slot_start"`
	SlotEnd   time.Time       `json:"slot_end"`
	Roster    []ParticipantID `json:"roster"`
}

// NewAttendanceRecord snapshots the slot's current roster.
func NewAttendanceRecord(c *Cycle, s *Slot) AttendanceRecord {
	return AttendanceRecord{
		CycleID:   c.ID,
		SlotID:    s.ID,
		SlotLabel: s.Label,
		SlotIndex: s.Index,
		SlotStart: s.Start,
		SlotEnd:   s.End,
		Roster:    append([]ParticipantID(nil), s.Roster...),
	}
}

// Key is the slot end in unix milliseconds.
func (r AttendanceRecord) Key() int64 { return r.SlotEnd.UnixMilli() }

// =============================================================================
// CONFIRMATION - One pending yes/no question
// =============================================================================

// AttendanceRef names one participant's presence in one slot of one cycle.
type AttendanceRef struct {
	CycleID     string
	SlotIndex   int
	Participant ParticipantID
}

func (r AttendanceRef) String() string {
	return r.CycleID + ":" + strconv.Itoa(r.SlotIndex) + ":" + r.Participant.String()
}

// ParseAttendanceRef parses the form produced by String.
func ParseAttendanceRef(s string) (AttendanceRef, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return AttendanceRef{}, fmt.Errorf("%w: malformed attendance reference %q", ErrUnknownSlot, s)
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return AttendanceRef{}, fmt.Errorf("%w: bad slot index in %q", ErrUnknownSlot, s)
	}
	pid, err := ParseParticipantID(parts[2])
	if err != nil {
		return AttendanceRef{}, err
	}
	return AttendanceRef{CycleID: parts[0], SlotIndex: idx, Participant: pid}, nil
}

type Confirmation struct {
	Ref       AttendanceRef
	SlotID    string
	SlotLabel string
	SlotEnd   time.Time
}

// =============================================================================
// ATTENDANCE BOOK
// =============================================================================

type Attendance struct {
	Records map[int64]AttendanceRecord
	Pending map[AttendanceRef]Confirmation
}

func NewAttendance() *Attendance {
	return &Attendance{
		Records: make(map[int64]AttendanceRecord),
		Pending: make(map[AttendanceRef]Confirmation),
	}
}

// Record stores (or overwrites) records, one per slot end.
func (a *Attendance) Record(recs ...AttendanceRecord) {
	for _, r := range recs {
		a.Records[r.Key()] = r
	}
}

// Due consumes every record whose slot ended before now and returns the
// prompts to issue, ordered by slot end then roster order.
func (a *Attendance) Due(now time.Time) []Confirmation {
	var ended []AttendanceRecord
	for k, r := range a.Records {
		if now.UnixMilli() > k {
			ended = append(ended, r)
			delete(a.Records, k)
		}
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].SlotEnd.Before(ended[j].SlotEnd) })

	var out []Confirmation
	for _, r := range ended {
		for _, id := range r.Roster {
			c := Confirmation{
				Ref:       AttendanceRef{CycleID: r.CycleID, SlotIndex: r.SlotIndex, Participant: id},
				SlotID:    r.SlotID,
				SlotLabel: r.SlotLabel,
				SlotEnd:   r.SlotEnd,
			}
			a.Pending[c.Ref] = c
			out = append(out, c)
		}
	}
	return out
}

// DiscardCycle drops the records of a superseded cycle.
func (a *Attendance) DiscardCycle(cycleID string) {
	for k, r := range a.Records {
		if r.CycleID == cycleID {
			delete(a.Records, k)
		}
	}
}

// All returns every stored record ordered by slot end.
func (a *Attendance) All() []AttendanceRecord {
	out := make([]AttendanceRecord, 0, len(a.Records))
	for _, r := range a.Records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotEnd.Before(out[j].SlotEnd) })
	return out
}

// Before returns the records of slots ending before t, ordered by end.
func (a *Attendance) Before(t time.Time) []AttendanceRecord {
	var out []AttendanceRecord
	for _, r := range a.Records {
		if r.SlotEnd.Before(t) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotEnd.Before(out[j].SlotEnd) })
	return out
}

// PendingConfirmations returns unanswered prompts ordered by slot end.
func (a *Attendance) PendingConfirmations() []Confirmation {
	out := make([]Confirmation, 0, len(a.Pending))
	for _, c := range a.Pending {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SlotEnd.Equal(out[j].SlotEnd) {
			return out[i].SlotEnd.Before(out[j].SlotEnd)
		}
		return out[i].Ref.Participant < out[j].Ref.Participant
	})
	return out
}

// Confirm applies a human answer to a pending prompt.
func (a *Attendance) Confirm(l *Ledger, ref AttendanceRef, attended bool) error {
	if _, ok := a.Pending[ref]; !ok {
		return fmt.Errorf("%w: no pending confirmation %s", ErrUnknownSlot, ref)
	}
	if !l.Has(ref.Participant) {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, ref.Participant)
	}
	var err error
	if attended {
		err = l.IncreaseKarma(ref.Participant, ref.String())
	} else {
		err = l.DecreaseKarma(ref.Participant, ref.String())
	}
	if err != nil {
		return err
	}
	delete(a.Pending, ref)
	return nil
}

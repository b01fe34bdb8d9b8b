/*
allocator.go - Weekly roster allocation

PURPOSE:
  Turns every slot's declarations into a roster that never exceeds the
  room's capacity. Runs to completion after every changed declaration and
  is reproducible: the same input always yields the same rosters.

ALGORITHM:
  Phase 0 - reset
    Take back last pass's punishment bonuses, clear rosters, zero the
    pass-scoped assignment counts, split declarations into must/could.

  Phase 1 - must, per slot in declaration order
    1. Shuffle must candidates (seed: start + 10*slot).
    2. While they outnumber the seats, walk them and try to punish each
       (seed: start + slot + id). A punished candidate leaves; the others
       are skipped, not removed.
    3. Still too many: random truncation to the seats (seed: start + slot^2).
    4. Seat the rest.
    5. If every could candidate fits in what is left, seat them all.

  Phase 2 - could run-off, slots in random order (seed: start)
    For n = 0, 1, ... take the candidates already holding exactly n seats
    this week, shuffle them (seed: start + slot - slots - n) and pop one at
    a time (seed: start + slot - id). While candidates still outnumber the
    seats a popped candidate may be punished instead of seated.

  Phase 3 - attendance records, one per slot, keyed by slot end.

SEEDS:
  start is the cycle's Monday in unix milliseconds.

INVARIANTS:
  - len(Roster) <= Capacity for every slot (checked, ErrCapacityInvariant)
  - Punishment only fires under genuine over-capacity contention; with
    capacity 0 any must candidate is contention
*/
package engine

import (
	"fmt"
)

// =============================================================================
// RESULT
// =============================================================================

type SlotResult struct {
	Index    int
	ID       string
	Label    string
	Capacity int
	Roster   []ParticipantID
	Punished []ParticipantID
}

type Result struct {
	CycleID     string
	Slots       []SlotResult
	AnyPunished bool
	Assigned    map[ParticipantID]int
	Records     []AttendanceRecord
}

// =============================================================================
// ALLOCATOR
// =============================================================================

type Allocator struct {
	ledger *Ledger
	rng    *RNG
}

// NewAllocator binds an allocator to a ledger. The allocator owns its RNG.
func NewAllocator(ledger *Ledger) *Allocator {
	return &Allocator{ledger: ledger, rng: NewRNG()}
}

// pass is the mutable state of one run, discarded afterwards.
type pass struct {
	cycle     *Cycle
	base      int64
	remaining []int
	could     [][]ParticipantID
	assigned  map[ParticipantID]int
	punished  bool
}

// Run computes the rosters of every slot of c.
func (a *Allocator) Run(c *Cycle) (*Result, error) {
	p := &pass{
		cycle:     c,
		base:      c.Start.UnixMilli(),
		remaining: make([]int, len(c.Slots)),
		could:     make([][]ParticipantID, len(c.Slots)),
		assigned:  make(map[ParticipantID]int),
	}

	if err := a.reset(p); err != nil {
		return nil, err
	}
	for _, s := range c.Slots {
		if err := a.resolveMust(p, s); err != nil {
			return nil, err
		}
	}
	if err := a.runOff(p); err != nil {
		return nil, err
	}

	a.ledger.commitAssigned(p.assigned)
	return a.result(p)
}

// -----------------------------------------------------------------------------
// Phase 0
// -----------------------------------------------------------------------------

func (a *Allocator) reset(p *pass) error {
	for _, s := range p.cycle.Slots {
		for _, id := range s.Punished {
			if err := a.ledger.Unpunish(id, ref(p.cycle, s)); err != nil {
				return fmt.Errorf("unpunish %s on %s: %w", id, s.ID, err)
			}
		}
		s.Roster = nil
		s.Punished = nil
		p.remaining[s.Index] = s.Capacity
	}
	a.ledger.ResetAssignedCounts()
	return nil
}

// -----------------------------------------------------------------------------
// Phase 1
// -----------------------------------------------------------------------------

func (a *Allocator) resolveMust(p *pass, s *Slot) error {
	must, could := s.Candidates()
	i := int64(s.Index)

	if len(must) > 0 {
		a.rng.Reseed(p.base + 10*i)
		must = a.rng.Shuffle(must)
	}

	// A closed room is overbooked by every must candidate, so the sweep runs
	// there too.
	for k := 0; len(must) > p.remaining[s.Index] && k < len(must); {
		id := must[k]
		a.rng.Reseed(p.base + i + int64(id))
		punished, err := a.ledger.Punish(id, a.rng, ref(p.cycle, s))
		if err != nil {
			return fmt.Errorf("punish %s on %s: %w", id, s.ID, err)
		}
		if punished {
			s.Punished = append(s.Punished, id)
			must = append(must[:k:k], must[k+1:]...)
			p.punished = true
			continue
		}
		k++
	}

	if len(must) > p.remaining[s.Index] {
		a.rng.Reseed(p.base + i*i)
		must = a.rng.Sample(must, p.remaining[s.Index])
	}
	a.seat(p, s, must...)

	if len(could) > 0 && len(could) <= p.remaining[s.Index] {
		a.seat(p, s, could...)
		could = nil
	}
	p.could[s.Index] = could
	return nil
}

// -----------------------------------------------------------------------------
// Phase 2
// -----------------------------------------------------------------------------

func (a *Allocator) runOff(p *pass) error {
	total := int64(len(p.cycle.Slots))
	a.rng.Reseed(p.base)
	for _, s := range a.rng.ShuffleSlots(p.cycle.Slots) {
		could := p.could[s.Index]
		if len(could) == 0 || p.remaining[s.Index] == 0 {
			continue
		}
		i := int64(s.Index)

		for n := 0; p.remaining[s.Index] > 0 && int64(n) <= total; n++ {
			var level []ParticipantID
			for _, id := range could {
				if p.assigned[id] == n {
					level = append(level, id)
				}
			}
			if len(level) > 0 {
				sortIDs(level)
				a.rng.Reseed(p.base + i - total - int64(n))
				level = a.rng.Shuffle(level)
			}

			for p.remaining[s.Index] > 0 && len(level) > 0 {
				id := level[0]
				level = level[1:]
				a.rng.Reseed(p.base + i - int64(id))

				contended := p.remaining[s.Index] < len(could)
				could = removeID(could, id)
				if contended {
					punished, err := a.ledger.Punish(id, a.rng, ref(p.cycle, s))
					if err != nil {
						return fmt.Errorf("punish %s on %s: %w", id, s.ID, err)
					}
					if punished {
						s.Punished = append(s.Punished, id)
						p.punished = true
						continue
					}
				}
				a.seat(p, s, id)
			}
		}
		p.could[s.Index] = could
	}
	return nil
}

func (a *Allocator) seat(p *pass, s *Slot, ids ...ParticipantID) {
	for _, id := range ids {
		s.Roster = append(s.Roster, id)
		p.assigned[id]++
	}
	p.remaining[s.Index] -= len(ids)
}

// -----------------------------------------------------------------------------
// Phase 3
// -----------------------------------------------------------------------------

func (a *Allocator) result(p *pass) (*Result, error) {
	res := &Result{
		CycleID:     p.cycle.ID,
		AnyPunished: p.punished,
		Assigned:    p.assigned,
	}
	for _, s := range p.cycle.Slots {
		if len(s.Roster) > s.Capacity {
			return nil, &CapacityViolationError{SlotID: s.ID, Capacity: s.Capacity, Roster: s.Roster}
		}
		res.Slots = append(res.Slots, SlotResult{
			Index:    s.Index,
			ID:       s.ID,
			Label:    s.Label,
			Capacity: s.Capacity,
			Roster:   append([]ParticipantID(nil), s.Roster...),
			Punished: append([]ParticipantID(nil), s.Punished...),
		})
		res.Records = append(res.Records, NewAttendanceRecord(p.cycle, s))
	}
	return res, nil
}

// Roster returns the roster of the slot with the given id, nil if unknown.
func (r *Result) Roster(slotID string) []ParticipantID {
	for _, s := range r.Slots {
		if s.ID == slotID {
			return s.Roster
		}
	}
	return nil
}

func ref(c *Cycle, s *Slot) string { return c.ID + "/" + s.ID }

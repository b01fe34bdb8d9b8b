/*
ledger.go - Participant ledger and karma rules

PURPOSE:
  Holds every participant of a tenant with their karma and the number of
  slots awarded to them in the current allocation pass. The ledger outlives
  weekly cycles; only the allocator writes AssignedCount and only karma rules
  (punish, attendance feedback) write Karma.

KARMA RULES:
  - Starts at InitialKarma, always clamped to [0, InitialKarma]
  - Punish:        triggers iff InitialKarma * u >= karma, then karma doubles
  - Unpunish:      takes back the bonus granted by last pass's punishments
  - IncreaseKarma: +Bonus on confirmed attendance
  - DecreaseKarma: halves karma on confirmed no-show

  The trigger probability is 1 - karma/InitialKarma: a participant at full
  karma is never punished, a participant who was punished once has doubled
  karma and is less likely to be punished again in the same pass.

AUDIT:
  Every karma change is buffered as a KarmaEvent. The room service drains
  the buffer after each call and appends it to the KarmaJournal.
*/
package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// =============================================================================
// PARTICIPANT
// =============================================================================

type Participant struct {
	ID            ParticipantID
	Profile       Profile
	Karma         decimal.Decimal
	AssignedCount int

	// PunishBonus is the karma granted by punishments in the latest pass.
	// The next pass takes it back first, so toggling a preference cannot
	// farm karma and re-running an unchanged pass starts from the same state.
	PunishBonus decimal.Decimal
}

// =============================================================================
// KARMA EVENTS - Append-only audit of karma changes
// =============================================================================

type KarmaEventKind string

const (
	KarmaPunished   KarmaEventKind = "punished"
	KarmaUnpunished KarmaEventKind = "unpunished"
	KarmaAttended   KarmaEventKind = "attended"
	KarmaMissed     KarmaEventKind = "missed"
)

type KarmaEvent struct {
	ID          string
	TenantID    TenantID
	Participant ParticipantID
	Kind        KarmaEventKind
	Before      decimal.Decimal
	After       decimal.Decimal
	Reference   string
	At          time.Time
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	InitialKarma decimal.Decimal
	Bonus        decimal.Decimal
	Clock        func() time.Time

	participants map[ParticipantID]*Participant
	pending      []KarmaEvent
}

// NewLedger creates an empty ledger with the given karma parameters.
func NewLedger(initialKarma, bonus decimal.Decimal) *Ledger {
	return &Ledger{
		InitialKarma: initialKarma,
		Bonus:        bonus,
		Clock:        time.Now,
		participants: make(map[ParticipantID]*Participant),
	}
}

// Upsert creates the participant with initial karma if absent, otherwise
// refreshes the profile only.
func (l *Ledger) Upsert(id ParticipantID, profile Profile) *Participant {
	if p, ok := l.participants[id]; ok {
		p.Profile = profile
		return p
	}
	p := &Participant{ID: id, Profile: profile, Karma: l.InitialKarma}
	l.participants[id] = p
	return p
}

// Restore puts a persisted participant back, clamping its karma.
func (l *Ledger) Restore(p Participant) {
	p.Karma = l.clamp(p.Karma)
	l.participants[p.ID] = &p
}

// Get returns the participant or ErrUnknownParticipant.
func (l *Ledger) Get(id ParticipantID) (*Participant, error) {
	p, ok := l.participants[id]
	if !ok {
		return nil, ErrUnknownParticipant
	}
	return p, nil
}

// Has reports whether id is known.
func (l *Ledger) Has(id ParticipantID) bool {
	_, ok := l.participants[id]
	return ok
}

// Participants returns all participants ordered by id.
func (l *Ledger) Participants() []*Participant {
	out := make([]*Participant, 0, len(l.participants))
	for _, p := range l.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Name is the display name, qualified by the last name when another
// participant shares the same first name.
func (l *Ledger) Name(id ParticipantID) string {
	p, ok := l.participants[id]
	if !ok {
		return id.String()
	}
	name := p.Profile.DisplayName()
	for oid, o := range l.participants {
		if oid != id && o.Profile.DisplayName() == name {
			if full := p.Profile.FullName(); full != "" {
				return full
			}
			break
		}
	}
	if name == "" {
		return id.String()
	}
	return name
}

// ResetAssignedCounts zeroes every AssignedCount. Called once per pass.
func (l *Ledger) ResetAssignedCounts() {
	for _, p := range l.participants {
		p.AssignedCount = 0
	}
}

// commitAssigned writes the pass-scoped counts back.
func (l *Ledger) commitAssigned(counts map[ParticipantID]int) {
	for id, n := range counts {
		if p, ok := l.participants[id]; ok {
			p.AssignedCount = n
		}
	}
}

// Punish runs the probabilistic demotion check with a draw from rng, which
// the caller has just reseeded. On trigger karma doubles (capped) and the
// participant leaves contention for the slot.
func (l *Ledger) Punish(id ParticipantID, rng *RNG, ref string) (bool, error) {
	p, err := l.Get(id)
	if err != nil {
		return false, err
	}
	u := decimal.NewFromFloat(rng.Uniform01())
	if l.InitialKarma.Mul(u).LessThan(p.Karma) {
		return false, nil
	}
	before := p.Karma
	l.set(p, p.Karma.Add(p.Karma), KarmaPunished, ref)
	p.PunishBonus = p.PunishBonus.Add(p.Karma.Sub(before))
	return true, nil
}

// Unpunish takes back the karma granted by the previous pass's
// punishments. No-op when there is nothing to take back.
func (l *Ledger) Unpunish(id ParticipantID, ref string) error {
	p, err := l.Get(id)
	if err != nil {
		return err
	}
	if p.PunishBonus.IsZero() {
		return nil
	}
	bonus := p.PunishBonus
	p.PunishBonus = decimal.Zero
	l.set(p, p.Karma.Sub(bonus), KarmaUnpunished, ref)
	return nil
}

// SettlePunishments makes every outstanding punishment bonus permanent.
// Called whenever a cycle is replaced.
func (l *Ledger) SettlePunishments() {
	for _, p := range l.participants {
		p.PunishBonus = decimal.Zero
	}
}

// IncreaseKarma rewards a confirmed attendance.
func (l *Ledger) IncreaseKarma(id ParticipantID, ref string) error {
	p, err := l.Get(id)
	if err != nil {
		return err
	}
	l.set(p, p.Karma.Add(l.Bonus), KarmaAttended, ref)
	return nil
}

// DecreaseKarma halves karma on a confirmed no-show.
func (l *Ledger) DecreaseKarma(id ParticipantID, ref string) error {
	p, err := l.Get(id)
	if err != nil {
		return err
	}
	l.set(p, p.Karma.Mul(half), KarmaMissed, ref)
	return nil
}

// DrainEvents returns and clears the buffered karma events.
func (l *Ledger) DrainEvents() []KarmaEvent {
	out := l.pending
	l.pending = nil
	return out
}

func (l *Ledger) set(p *Participant, karma decimal.Decimal, kind KarmaEventKind, ref string) {
	before := p.Karma
	p.Karma = l.clamp(karma)
	l.pending = append(l.pending, KarmaEvent{
		ID:          uuid.NewString(),
		Participant: p.ID,
		Kind:        kind,
		Before:      before,
		After:       p.Karma,
		Reference:   ref,
		At:          l.Clock().UTC(),
	})
}

func (l *Ledger) clamp(k decimal.Decimal) decimal.Decimal {
	if k.IsNegative() {
		return decimal.Zero
	}
	if k.GreaterThan(l.InitialKarma) {
		return l.InitialKarma
	}
	return k
}

package engine

import (
	"sort"
	"time"
)

// =============================================================================
// SLOT - One bookable time window
// =============================================================================

// Slot holds the declarations for one half-day and the roster computed from
// them. After any allocation pass len(Roster) <= Capacity.
type Slot struct {
	ID       string
	Label    string
	Index    int
	Start    time.Time
	End      time.Time
	Capacity int // 0 means the room is closed

	Preferences map[ParticipantID]Preference
	Roster      []ParticipantID
	Punished    []ParticipantID
}

// Declare records a preference. Returns false when nothing changed, in
// which case no allocation pass is needed.
func (s *Slot) Declare(id ParticipantID, pref Preference) bool {
	if s.Preferences == nil {
		s.Preferences = make(map[ParticipantID]Preference)
	}
	if cur, ok := s.Preferences[id]; ok && cur == pref {
		return false
	}
	s.Preferences[id] = pref
	return true
}

// Preference returns what id declared for this slot.
func (s *Slot) Preference(id ParticipantID) (Preference, bool) {
	p, ok := s.Preferences[id]
	return p, ok
}

// Pretenders returns everyone who declared anything, ordered by id.
func (s *Slot) Pretenders() []ParticipantID {
	ids := make([]ParticipantID, 0, len(s.Preferences))
	for id := range s.Preferences {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Candidates splits declarations into must and could lists, ordered by id.
// Cannot declarations are ignored.
func (s *Slot) Candidates() (must, could []ParticipantID) {
	for _, id := range s.Pretenders() {
		switch s.Preferences[id] {
		case PrefMust:
			must = append(must, id)
		case PrefCould:
			could = append(could, id)
		}
	}
	return must, could
}

// InRoster reports whether id holds a seat.
func (s *Slot) InRoster(id ParticipantID) bool {
	return containsID(s.Roster, id)
}

func sortIDs(ids []ParticipantID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func containsID(ids []ParticipantID, id ParticipantID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []ParticipantID, id ParticipantID) []ParticipantID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

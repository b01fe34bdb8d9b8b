/*
Package engine provides the weekly room-allocation core.

PURPOSE:
  A fixed group of people competes for a room with a limited number of
  seats across the half-day slots of a week. Each person declares, per
  slot, whether they must come, could come or cannot come. The engine turns
  those declarations into a deterministic, fair roster per slot and keeps a
  karma score per person that couples one week's behaviour to the next
  week's odds.

KEY CONCEPTS IN THIS FILE (types.go):
  - ParticipantID / TenantID: Type-safe identifiers
  - Preference: must, could, cannot
  - Profile: Display metadata of a participant (never touches karma)

COMPONENTS (leaves first):
  rng.go        Deterministic RNG scope, reseeded before every random draw
  ledger.go     Participant ledger and karma rules
  slot.go       One bookable time window
  cycle.go      The slots of one week plus deadline policy
  allocator.go  The allocation algorithm (must phase, could run-off)
  attendance.go Attendance records and karma feedback
  snapshot.go   Versioned persisted state
  store.go      Persistence hooks

SEE ALSO:
  - room/service.go: Serialized per-tenant orchestration
  - store/sqlite/sqlite.go: Durable snapshots and karma journal
*/
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ParticipantID identifies a person. Chat platforms hand out integer ids and
// the allocator folds them into RNG seeds, so the id is numeric.
type ParticipantID int64

func (id ParticipantID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseParticipantID parses the decimal form produced by String.
func ParseParticipantID(s string) (ParticipantID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid participant id %q: %w", s, err)
	}
	return ParticipantID(v), nil
}

// TenantID identifies one chat (or channel) running its own weekly cycle.
type TenantID string

// =============================================================================
// PREFERENCE - What a participant declares for a slot
// =============================================================================

type Preference string

const (
	PrefMust   Preference = "must"   // Cannot work from elsewhere
	PrefCould  Preference = "could"  // Would come if there is room
	PrefCannot Preference = "cannot" // Not coming
)

// ParsePreference validates a declared preference.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case PrefMust, PrefCould, PrefCannot:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPreference, s)
}

// =============================================================================
// PROFILE - Display metadata
// =============================================================================

// Profile is the display metadata a chat platform knows about a person.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// DisplayName is the first name, falling back to the username.
func (p Profile) DisplayName() string {
	if p.FirstName != "" {
		return p.FirstName
	}
	return p.Username
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

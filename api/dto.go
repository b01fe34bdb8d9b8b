/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the room service's read models from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Tenants:     TenantDTO, RegisterTenantRequest
  Cycles:      CycleDTO, SlotDTO, SeatDTO, StartCycleRequest
  Preferences: DeclarePreferenceRequest, DeclarationDTO, AllocationDTO
  Karma:       KarmaDTO, KarmaEventDTO
  Attendance:  PromptDTO, ConfirmAttendanceRequest, VerdictDTO
  Scenarios:   ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - room/view.go: The read models converted here
*/
package api

import (
	"time"

	"github.com/warp/roster-engine/engine"
	"github.com/warp/roster-engine/room"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// TenantDTO represents a served chat or team.
type TenantDTO struct {
	ID string `json:"id"`
}

// RegisterTenantRequest is the request to start serving a tenant.
type RegisterTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

// StartCycleRequest opens the cycle for a reference time (default: now).
type StartCycleRequest struct {
	At *time.Time `json:"at,omitempty"`
}

// SeatDTO is a participant as listed in a slot.
type SeatDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SlotDTO represents one slot with its declarations and roster.
type SlotDTO struct {
	Index    int       `json:"index"`
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Capacity int       `json:"capacity"`
	Must     []SeatDTO `json:"must"`
	Could    []SeatDTO `json:"could"`
	Cannot   []SeatDTO `json:"cannot"`
	Roster   []SeatDTO `json:"roster"`
	Punished []SeatDTO `json:"punished,omitempty"`
}

// CycleDTO represents a weekly cycle.
type CycleDTO struct {
	ID       string    `json:"id"`
	RoomName string    `json:"room_name"`
	Start    string    `json:"start"`
	Deadline string    `json:"deadline"`
	Open     bool      `json:"open"`
	Renewed  *bool     `json:"renewed,omitempty"`
	Previous string    `json:"previous,omitempty"`
	Slots    []SlotDTO `json:"slots"`
}

// DeclarePreferenceRequest is one person's answer for one slot.
type DeclarePreferenceRequest struct {
	Preference string `json:"preference"` // must, could, cannot
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

// DeclarationDTO is the response after a declaration.
type DeclarationDTO struct {
	Changed     bool     `json:"changed"`
	AnyPunished bool     `json:"any_punished"`
	Cycle       CycleDTO `json:"cycle"`
}

// AllocationDTO is the result of an explicit allocation run.
type AllocationDTO struct {
	CycleID     string              `json:"cycle_id"`
	AnyPunished bool                `json:"any_punished"`
	Slots       []AllocatedSlotDTO  `json:"slots"`
	Assigned    map[string]int      `json:"assigned"`
}

// AllocatedSlotDTO is one slot of an allocation result.
type AllocatedSlotDTO struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Capacity int      `json:"capacity"`
	Roster   []string `json:"roster"`
	Punished []string `json:"punished,omitempty"`
}

// KarmaDTO is one line of the karma table.
type KarmaDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Karma string `json:"karma"`
}

// KarmaEventDTO is one journaled karma change.
type KarmaEventDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Reference string `json:"reference,omitempty"`
	At        string `json:"at"`
}

// PromptDTO is one pending attendance question.
type PromptDTO struct {
	Ref           string `json:"ref"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	SlotID        string `json:"slot_id"`
	SlotLabel     string `json:"slot_label"`
	SlotEnd       string `json:"slot_end"`
}

// ConfirmAttendanceRequest answers a prompt.
type ConfirmAttendanceRequest struct {
	Ref      string `json:"ref"`
	Attended bool   `json:"attended"`
}

// VerdictDTO lists the frozen rosters of the week in progress.
type VerdictDTO struct {
	WeekOf string           `json:"week_of"`
	Slots  []VerdictSlotDTO `json:"slots"`
}

// VerdictSlotDTO is one slot of the verdict.
type VerdictSlotDTO struct {
	Label  string    `json:"label"`
	Start  string    `json:"start"`
	End    string    `json:"end"`
	Roster []SeatDTO `json:"roster"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest loads a scenario into a tenant.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	TenantID   string `json:"tenant_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSeatDTOs(seats []room.Seat) []SeatDTO {
	dtos := make([]SeatDTO, len(seats))
	for i, s := range seats {
		dtos[i] = SeatDTO{ID: s.ID.String(), Name: s.Name}
	}
	return dtos
}

func toCycleDTO(c room.CycleView) CycleDTO {
	dto := CycleDTO{
		ID:       c.ID,
		RoomName: c.RoomName,
		Start:    c.Start.Format(time.RFC3339),
		Deadline: c.Deadline.Format(time.RFC3339),
		Open:     c.Open,
		Slots:    make([]SlotDTO, len(c.Slots)),
	}
	for i, s := range c.Slots {
		dto.Slots[i] = SlotDTO{
			Index:    s.Index,
			ID:       s.ID,
			Label:    s.Label,
			Start:    s.Start.Format(time.RFC3339),
			End:      s.End.Format(time.RFC3339),
			Capacity: s.Capacity,
			Must:     toSeatDTOs(s.Must),
			Could:    toSeatDTOs(s.Could),
			Cannot:   toSeatDTOs(s.Cannot),
			Roster:   toSeatDTOs(s.Roster),
			Punished: toSeatDTOs(s.Punished),
		}
	}
	return dto
}

func toAllocationDTO(res *engine.Result) AllocationDTO {
	dto := AllocationDTO{
		CycleID:     res.CycleID,
		AnyPunished: res.AnyPunished,
		Assigned:    make(map[string]int, len(res.Assigned)),
	}
	for id, n := range res.Assigned {
		dto.Assigned[id.String()] = n
	}
	for _, s := range res.Slots {
		dto.Slots = append(dto.Slots, AllocatedSlotDTO{
			ID:       s.ID,
			Label:    s.Label,
			Capacity: s.Capacity,
			Roster:   idStrings(s.Roster),
			Punished: idStrings(s.Punished),
		})
	}
	return dto
}

func idStrings(ids []engine.ParticipantID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func toKarmaDTO(k room.KarmaEntry) KarmaDTO {
	return KarmaDTO{ID: k.ID.String(), Name: k.Name, Karma: k.Karma.String()}
}

func toKarmaEventDTO(e engine.KarmaEvent) KarmaEventDTO {
	return KarmaEventDTO{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Before:    e.Before.String(),
		After:     e.After.String(),
		Reference: e.Reference,
		At:        e.At.Format(time.RFC3339),
	}
}

func toPromptDTO(p room.Prompt) PromptDTO {
	return PromptDTO{
		Ref:           p.Ref.String(),
		ParticipantID: p.Ref.Participant.String(),
		Name:          p.Name,
		SlotID:        p.SlotID,
		SlotLabel:     p.SlotLabel,
		SlotEnd:       p.SlotEnd.Format(time.RFC3339),
	}
}

func toVerdictDTO(v room.Verdict) VerdictDTO {
	dto := VerdictDTO{WeekOf: v.WeekOf.Format("2006-01-02"), Slots: []VerdictSlotDTO{}}
	for _, s := range v.Slots {
		dto.Slots = append(dto.Slots, VerdictSlotDTO{
			Label:  s.Label,
			Start:  s.Start.Format(time.RFC3339),
			End:    s.End.Format(time.RFC3339),
			Roster: toSeatDTOs(s.Roster),
		})
	}
	return dto
}

/*
Package factory provides JSON to Go room policy conversion.

PURPOSE:
  Converts JSON room definitions into engine.Policy objects. This lets an
  operator change the room (seats, slots, timezone, deadline) without code
  changes: point ROOM_POLICY_FILE at a JSON or YAML file and restart.

JSON SCHEMA:
  {
    "room_name": "the Office",
    "capacity": 3,
    "initial_karma": 128,
    "karma_bonus": 8,
    "timezone": "Europe/Rome",
    "deadline_offset": "-60h",
    "reminder_lead": "2h30m",
    "slots": [
      {"id": "mon_am", "label": "Mon am", "day": "monday", "start": "09:00", "end": "14:00"},
      {"id": "mon_pm", "label": "Mon pm", "day": "monday", "start": "14:00", "end": "18:00"}
    ]
  }

  Every field is optional; missing fields keep engine.DefaultPolicy()
  values. deadline_offset is relative to the cycle's Monday at midnight and
  must not be positive.

USAGE:
  factory := NewPolicyFactory()

  // From JSON string
  policy, err := factory.ParsePolicy(jsonString)

  // From a file; .yaml and .yml files are read as YAML
  policy, err := factory.LoadFile("./room.json")

SEE ALSO:
  - engine/cycle.go: Policy type definition
  - config/config.go: ROOM_POLICY_FILE
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/warp/roster-engine/engine"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a room policy.
type PolicyJSON struct {
	RoomName       string           `json:"room_name,omitempty"`
	Capacity       *int             `json:"capacity,omitempty"`
	InitialKarma   *decimal.Decimal `json:"initial_karma,omitempty"`
	KarmaBonus     *decimal.Decimal `json:"karma_bonus,omitempty"`
	Timezone       string           `json:"timezone,omitempty"`
	DeadlineOffset string           `json:"deadline_offset,omitempty"` // Go duration
	ReminderLead   string           `json:"reminder_lead,omitempty"`   // Go duration
	Slots          []SlotJSON       `json:"slots,omitempty"`
}

// SlotJSON represents one weekly slot.
type SlotJSON struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Day   string `json:"day"`   // monday .. sunday
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON room policies to engine.Policy.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a validated Policy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (engine.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return engine.Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// LoadFile reads and parses a policy file.
func (f *PolicyFactory) LoadFile(path string) (engine.Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return engine.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParseYAML(raw)
	}
	return f.ParsePolicy(string(raw))
}

// ParseYAML accepts the same document as ParsePolicy written in YAML.
func (f *PolicyFactory) ParseYAML(raw []byte) (engine.Policy, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return engine.Policy{}, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	// Round trip through JSON so both formats share one schema.
	data, err := json.Marshal(doc)
	if err != nil {
		return engine.Policy{}, fmt.Errorf("failed to convert policy YAML: %w", err)
	}
	return f.ParsePolicy(string(data))
}

// FromJSON converts PolicyJSON to engine.Policy, filling defaults.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (engine.Policy, error) {
	p := engine.DefaultPolicy()

	if pj.RoomName != "" {
		p.RoomName = pj.RoomName
	}
	if pj.Capacity != nil {
		p.Capacity = *pj.Capacity
	}
	if pj.InitialKarma != nil {
		p.InitialKarma = *pj.InitialKarma
	}
	if pj.KarmaBonus != nil {
		p.KarmaBonus = *pj.KarmaBonus
	}
	if pj.Timezone != "" {
		loc, err := time.LoadLocation(pj.Timezone)
		if err != nil {
			return engine.Policy{}, fmt.Errorf("invalid timezone %q: %w", pj.Timezone, err)
		}
		p.Location = loc
	}
	if pj.DeadlineOffset != "" {
		d, err := time.ParseDuration(pj.DeadlineOffset)
		if err != nil {
			return engine.Policy{}, fmt.Errorf("invalid deadline_offset: %w", err)
		}
		p.DeadlineOffset = d
	}
	if pj.ReminderLead != "" {
		d, err := time.ParseDuration(pj.ReminderLead)
		if err != nil {
			return engine.Policy{}, fmt.Errorf("invalid reminder_lead: %w", err)
		}
		p.ReminderLead = d
	}

	if len(pj.Slots) > 0 {
		p.Slots = p.Slots[:0:0]
		for _, sj := range pj.Slots {
			t, err := parseSlot(sj)
			if err != nil {
				return engine.Policy{}, err
			}
			p.Slots = append(p.Slots, t)
		}
	}

	if err := p.Validate(); err != nil {
		return engine.Policy{}, err
	}
	return p, nil
}

// ToJSON converts a Policy to PolicyJSON.
func (f *PolicyFactory) ToJSON(p engine.Policy) PolicyJSON {
	capacity := p.Capacity
	initial, bonus := p.InitialKarma, p.KarmaBonus
	pj := PolicyJSON{
		RoomName:       p.RoomName,
		Capacity:       &capacity,
		InitialKarma:   &initial,
		KarmaBonus:     &bonus,
		DeadlineOffset: p.DeadlineOffset.String(),
		ReminderLead:   p.ReminderLead.String(),
	}
	if p.Location != nil {
		pj.Timezone = p.Location.String()
	}
	for _, t := range p.Slots {
		pj.Slots = append(pj.Slots, SlotJSON{
			ID:    t.ID,
			Label: t.Label,
			Day:   strings.ToLower(weekdays[t.Day].String()),
			Start: formatClock(t.Start),
			End:   formatClock(t.End),
		})
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// weekdays maps the slot day index (0 = Monday) to time.Weekday.
var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func parseSlot(sj SlotJSON) (engine.SlotTemplate, error) {
	day, err := parseDay(sj.Day)
	if err != nil {
		return engine.SlotTemplate{}, fmt.Errorf("slot %s: %w", sj.ID, err)
	}
	start, err := parseClock(sj.Start)
	if err != nil {
		return engine.SlotTemplate{}, fmt.Errorf("slot %s start: %w", sj.ID, err)
	}
	end, err := parseClock(sj.End)
	if err != nil {
		return engine.SlotTemplate{}, fmt.Errorf("slot %s end: %w", sj.ID, err)
	}
	label := sj.Label
	if label == "" {
		label = sj.ID
	}
	return engine.SlotTemplate{ID: sj.ID, Label: label, Day: day, Start: start, End: end}, nil
}

func parseDay(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, wd := range weekdays {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", s)
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

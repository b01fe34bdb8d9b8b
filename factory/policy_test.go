package factory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/engine"
)

func TestParsePolicy_EmptyKeepsDefaults(t *testing.T) {
	p, err := NewPolicyFactory().ParsePolicy(`{}`)

	require.NoError(t, err)
	def := engine.DefaultPolicy()
	assert.Equal(t, def.Capacity, p.Capacity)
	assert.True(t, def.InitialKarma.Equal(p.InitialKarma))
	assert.Equal(t, def.DeadlineOffset, p.DeadlineOffset)
	assert.Len(t, p.Slots, 10)
}

func TestParsePolicy_CustomRoom(t *testing.T) {
	// GIVEN: A two-seat room open on Tuesday and Thursday mornings only
	js := `{
		"room_name": "Lab",
		"capacity": 2,
		"initial_karma": 64,
		"karma_bonus": 4.5,
		"timezone": "Europe/Rome",
		"deadline_offset": "-36h",
		"reminder_lead": "1h",
		"slots": [
			{"id": "tue_am", "day": "tue", "start": "09:00", "end": "13:00"},
			{"id": "thu_am", "label": "Thursday", "day": "Thursday", "start": "08:30", "end": "12:30"}
		]
	}`

	// WHEN: Parsed
	p, err := NewPolicyFactory().ParsePolicy(js)

	// THEN: Every field is taken from the JSON
	require.NoError(t, err)
	assert.Equal(t, "Lab", p.RoomName)
	assert.Equal(t, 2, p.Capacity)
	assert.Equal(t, "64", p.InitialKarma.String())
	assert.Equal(t, "4.5", p.KarmaBonus.String())
	assert.Equal(t, "Europe/Rome", p.Location.String())
	assert.Equal(t, -36*time.Hour, p.DeadlineOffset)
	assert.Equal(t, time.Hour, p.ReminderLead)
	require.Len(t, p.Slots, 2)
	assert.Equal(t, engine.SlotTemplate{ID: "tue_am", Label: "tue_am", Day: 1, Start: 9 * time.Hour, End: 13 * time.Hour}, p.Slots[0])
	assert.Equal(t, 3, p.Slots[1].Day)
	assert.Equal(t, 8*time.Hour+30*time.Minute, p.Slots[1].Start)
}

func TestParsePolicy_Rejects(t *testing.T) {
	tests := map[string]string{
		"malformed":         `{`,
		"bad timezone":      `{"timezone": "Mars/Olympus"}`,
		"bad duration":      `{"deadline_offset": "soon"}`,
		"positive deadline": `{"deadline_offset": "2h"}`,
		"bad day":           `{"slots": [{"id": "x", "day": "someday", "start": "09:00", "end": "10:00"}]}`,
		"bad clock":         `{"slots": [{"id": "x", "day": "mon", "start": "9am", "end": "10:00"}]}`,
		"inverted slot":     `{"slots": [{"id": "x", "day": "mon", "start": "10:00", "end": "09:00"}]}`,
		"negative capacity": `{"capacity": -1}`,
	}
	for name, js := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewPolicyFactory().ParsePolicy(js)
			assert.Error(t, err)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewPolicyFactory()
	raw, err := json.Marshal(f.ToJSON(engine.DefaultPolicy()))
	require.NoError(t, err)

	p, err := f.ParsePolicy(string(raw))

	require.NoError(t, err)
	assert.Equal(t, engine.DefaultPolicy().Slots, p.Slots)
	assert.Equal(t, engine.DefaultPolicy().DeadlineOffset, p.DeadlineOffset)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capacity": 5}`), 0o600))

	p, err := NewPolicyFactory().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Capacity)

	_, err = NewPolicyFactory().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadFile_YAML(t *testing.T) {
	// GIVEN: A room written in YAML
	path := filepath.Join(t.TempDir(), "room.yaml")
	doc := `room_name: Lab
capacity: 2
karma_bonus: 4.5
timezone: Europe/Rome
slots:
  - id: tue_am
    day: tuesday
    start: "09:00"
    end: "13:00"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	// WHEN: Loaded
	p, err := NewPolicyFactory().LoadFile(path)

	// THEN: It reads like the JSON form
	require.NoError(t, err)
	assert.Equal(t, "Lab", p.RoomName)
	assert.Equal(t, 2, p.Capacity)
	assert.Equal(t, "4.5", p.KarmaBonus.String())
	assert.Equal(t, "Europe/Rome", p.Location.String())
	require.Len(t, p.Slots, 1)
	assert.Equal(t, 9*time.Hour, p.Slots[0].Start)

	_, err = NewPolicyFactory().ParseYAML([]byte("capacity: [1"))
	assert.Error(t, err)
}

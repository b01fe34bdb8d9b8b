/*
scenarios.go - Demo weeks for testing and demonstrations

PURPOSE:

	Provides pre-built weeks that populate a tenant with realistic
	declarations. Each scenario registers a fresh tenant, opens the cycle
	for the current week and declares preferences that show one behaviour
	of the allocator.

AVAILABLE SCENARIOS:

	crowded-monday:    Six people must come on Monday morning, three seats drawn
	balanced-week:     Everybody could come, one slot each, nobody loses
	mixed-preferences: Musts, coulds and cannots over the whole week

HOW SCENARIOS WORK:
 1. Unregister the tenant if it exists (its snapshot is dropped)
 2. Register it again
 3. Start the cycle for now
 4. Declare every preference of the scenario

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "crowded-monday", "tenant_id": "demo"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create a function xxxScenario() returning its declarations
 3. Add case to LoadScenario handler

NOTE:

	Slots are addressed by index, so scenarios also work with a custom
	room policy as long as it has at least ten slots. Karma journals are
	append-only and survive a reload.

SEE ALSO:
  - handlers.go: Handler context
  - room/service.go: The operations replayed here
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/warp/roster-engine/engine"
	"github.com/warp/roster-engine/room"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const defaultScenarioTenant = "demo"

var scenarios = []ScenarioDTO{
	{
		ID:          "crowded-monday",
		Name:        "Crowded Monday",
		Description: "Six musts for three seats on Monday morning: at full karma nobody is punished, three are drawn",
	},
	{
		ID:          "balanced-week",
		Name:        "Balanced Week",
		Description: "Coulds spread over the week, every candidate gets a seat",
	},
	{
		ID:          "mixed-preferences",
		Name:        "Mixed Preferences",
		Description: "Musts, coulds and cannots competing over the whole week",
	},
}

// demoTeam are the participants every scenario draws from.
var demoTeam = []struct {
	ID      engine.ParticipantID
	Profile engine.Profile
}{
	{101, engine.Profile{Username: "ada", FirstName: "Ada", LastName: "Lovelace"}},
	{102, engine.Profile{Username: "alan", FirstName: "Alan", LastName: "Turing"}},
	{103, engine.Profile{Username: "grace", FirstName: "Grace", LastName: "Hopper"}},
	{104, engine.Profile{FirstName: "Edsger", LastName: "Dijkstra"}},
	{105, engine.Profile{Username: "barbara", FirstName: "Barbara"}},
	{106, engine.Profile{FirstName: "Ken", LastName: "Thompson"}},
}

type scenarioDeclaration struct {
	member int // index into demoTeam
	slot   int
	pref   engine.Preference
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined week into a tenant.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TenantID == "" {
		req.TenantID = defaultScenarioTenant
	}
	tenant := engine.TenantID(req.TenantID)

	var decls []scenarioDeclaration
	switch req.ScenarioID {
	case "crowded-monday":
		decls = crowdedMondayScenario()
	case "balanced-week":
		decls = balancedWeekScenario()
	case "mixed-preferences":
		decls = mixedPreferencesScenario()
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	h.currentScenario = ""
	cycle, err := h.loadScenario(ctx, tenant, decls)
	if err != nil {
		writeServiceError(w, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.log.Info("scenario loaded", "scenario", req.ScenarioID, "tenant", tenant)
	writeJSON(w, http.StatusOK, toCycleDTO(cycle))
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, tenant engine.TenantID, decls []scenarioDeclaration) (room.CycleView, error) {
	if h.Service.Registered(tenant) {
		if err := h.Service.Unregister(ctx, tenant); err != nil {
			return room.CycleView{}, err
		}
	}
	if err := h.Service.Register(ctx, tenant); err != nil {
		return room.CycleView{}, err
	}

	now := h.Now()
	start, err := h.Service.StartCycle(ctx, tenant, now)
	if err != nil {
		return room.CycleView{}, err
	}

	view := start.Cycle
	for _, d := range decls {
		member := demoTeam[d.member]
		out, err := h.Service.DeclarePreference(ctx, tenant, room.Declaration{
			Participant: member.ID,
			Profile:     member.Profile,
			Slot:        strconv.Itoa(d.slot),
			Preference:  d.pref,
		}, now)
		if err != nil {
			return room.CycleView{}, err
		}
		view = out.Cycle
	}
	return view, nil
}

// crowdedMondayScenario: everybody must come on Monday morning.
func crowdedMondayScenario() []scenarioDeclaration {
	decls := make([]scenarioDeclaration, 0, len(demoTeam))
	for i := range demoTeam {
		decls = append(decls, scenarioDeclaration{member: i, slot: 0, pref: engine.PrefMust})
	}
	return decls
}

// balancedWeekScenario: one could per slot on the first three days.
func balancedWeekScenario() []scenarioDeclaration {
	decls := make([]scenarioDeclaration, 0, len(demoTeam))
	for i := range demoTeam {
		decls = append(decls, scenarioDeclaration{member: i, slot: i, pref: engine.PrefCould})
	}
	return decls
}

func mixedPreferencesScenario() []scenarioDeclaration {
	return []scenarioDeclaration{
		// Tuesday morning: two musts and three coulds for three seats
		{member: 0, slot: 2, pref: engine.PrefMust},
		{member: 1, slot: 2, pref: engine.PrefMust},
		{member: 2, slot: 2, pref: engine.PrefCould},
		{member: 3, slot: 2, pref: engine.PrefCould},
		{member: 4, slot: 2, pref: engine.PrefCould},
		{member: 5, slot: 2, pref: engine.PrefCannot},

		// Thursday: afternoon crowded with coulds, morning empty
		{member: 2, slot: 7, pref: engine.PrefCould},
		{member: 3, slot: 7, pref: engine.PrefCould},
		{member: 4, slot: 7, pref: engine.PrefCould},
		{member: 5, slot: 7, pref: engine.PrefCould},
		{member: 0, slot: 6, pref: engine.PrefCannot},

		// Friday afternoon: four musts
		{member: 1, slot: 9, pref: engine.PrefMust},
		{member: 3, slot: 9, pref: engine.PrefMust},
		{member: 4, slot: 9, pref: engine.PrefMust},
		{member: 5, slot: 9, pref: engine.PrefMust},
	}
}

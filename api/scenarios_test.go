package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListScenarios(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]ScenarioDTO](t, rec)
	require.Len(t, got, len(scenarios))
	assert.Equal(t, "crowded-monday", got[0].ID)
}

func TestLoadScenario_CrowdedMonday(t *testing.T) {
	// GIVEN: A server with no tenant
	ts := newTestServer(t)

	// WHEN: The crowded Monday is loaded
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "crowded-monday"})

	// THEN: Three of the six musts got a seat by draw, nobody was punished
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decode[CycleDTO](t, rec)
	assert.Equal(t, "2026-10-19", c.ID)
	assert.Len(t, c.Slots[0].Must, 6)
	assert.Len(t, c.Slots[0].Roster, 3)
	assert.Empty(t, c.Slots[0].Punished)

	current := decode[ScenarioDTO](t, ts.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "crowded-monday", current.ID)

	// AND: The demo tenant can be read like any other
	karma := decode[[]KarmaDTO](t, ts.do(t, http.MethodGet, "/api/tenants/demo/participants", nil))
	assert.Len(t, karma, len(demoTeam))
}

func TestLoadScenario_BalancedWeek(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "balanced-week", TenantID: "chat-9"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decode[CycleDTO](t, rec)
	for i := range demoTeam {
		assert.Len(t, c.Slots[i].Roster, 1, c.Slots[i].ID)
		assert.Equal(t, demoTeam[i].ID.String(), c.Slots[i].Roster[0].ID)
	}
	assert.Empty(t, c.Slots[9].Roster)
}

func TestLoadScenario_MixedPreferences(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "mixed-preferences"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decode[CycleDTO](t, rec)

	tuesday := seatIDs(c.Slots[2].Roster)
	assert.Len(t, tuesday, 3)
	assert.Contains(t, tuesday, "101")
	assert.Contains(t, tuesday, "102")
	assert.NotContains(t, tuesday, "106")
	assert.Len(t, c.Slots[2].Cannot, 1)

	assert.Len(t, c.Slots[7].Roster, 3)
	assert.Empty(t, c.Slots[6].Roster)
	assert.Len(t, c.Slots[9].Roster, 3)
}

func TestLoadScenario_ReloadReplacesTenant(t *testing.T) {
	// GIVEN: A scenario already loaded
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "crowded-monday"})

	// WHEN: Another one is loaded into the same tenant
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "balanced-week"})

	// THEN: Monday only holds the new declaration
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[CycleDTO](t, rec)
	assert.Empty(t, c.Slots[0].Must)
	assert.Len(t, c.Slots[0].Could, 1)
}

func TestLoadScenario_Unknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "null\n", ts.do(t, http.MethodGet, "/api/scenarios/current", nil).Body.String())
}

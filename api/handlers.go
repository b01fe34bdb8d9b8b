/*
handlers.go - HTTP API handlers for the room roster engine

PURPOSE:
  Exposes the room service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to room.Service.

ENDPOINTS:
  Tenants:
    POST   /api/tenants                          Register a tenant
    DELETE /api/tenants/{tenant}                 Unregister a tenant

  Cycles:
    POST   /api/tenants/{tenant}/cycles          Start the cycle for now (or "at")
    GET    /api/tenants/{tenant}/cycle           Current cycle with rosters
    PUT    /api/tenants/{tenant}/cycle/slots/{slot}/preferences/{participant}
                                                 Declare a preference
    POST   /api/tenants/{tenant}/cycle/allocation Recompute the rosters

  Karma and attendance:
    GET    /api/tenants/{tenant}/participants    Karma table
    GET    /api/tenants/{tenant}/participants/{participant}/karma-events
    GET    /api/tenants/{tenant}/verdict         Frozen rosters of this week
    GET    /api/tenants/{tenant}/attendance      Pending confirmations
    POST   /api/tenants/{tenant}/attendance      Answer a confirmation

  Policy:
    GET    /api/policy                           Room policy as JSON

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown preference
  - 404: Unknown tenant, slot, participant or confirmation
  - 409: Conflict (closed cycle, no cycle yet, tenant exists)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The API is meant to sit behind the bot host.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/roster-engine/engine"
	"github.com/warp/roster-engine/factory"
	"github.com/warp/roster-engine/room"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service       *room.Service
	PolicyFactory *factory.PolicyFactory
	Now           func() time.Time

	log *slog.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler for the given service.
func NewHandler(svc *room.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:       svc,
		PolicyFactory: factory.NewPolicyFactory(),
		Now:           time.Now,
		log:           logger.With("component", "api"),
	}
}

// =============================================================================
// TENANT HANDLERS
// =============================================================================

// RegisterTenant starts serving a tenant.
func (h *Handler) RegisterTenant(w http.ResponseWriter, r *http.Request) {
	var req RegisterTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required", nil)
		return
	}

	if err := h.Service.Register(r.Context(), engine.TenantID(req.TenantID)); err != nil {
		writeServiceError(w, "Failed to register tenant", err)
		return
	}
	writeJSON(w, http.StatusCreated, TenantDTO{ID: req.TenantID})
}

// UnregisterTenant stops serving a tenant.
func (h *Handler) UnregisterTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Unregister(r.Context(), tenantParam(r)); err != nil {
		writeServiceError(w, "Failed to unregister tenant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CYCLE HANDLERS
// =============================================================================

// StartCycle opens the cycle that declarations made now belong to.
func (h *Handler) StartCycle(w http.ResponseWriter, r *http.Request) {
	var req StartCycleRequest
	// An empty body means "now".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at := h.Now()
	if req.At != nil {
		at = *req.At
	}

	out, err := h.Service.StartCycle(r.Context(), tenantParam(r), at)
	if err != nil {
		writeServiceError(w, "Failed to start cycle", err)
		return
	}

	dto := toCycleDTO(out.Cycle)
	dto.Renewed = &out.Renewed
	dto.Previous = out.Previous
	status := http.StatusOK
	if out.Renewed {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto)
}

// GetCycle returns the current cycle with declarations and rosters.
func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Cycle(r.Context(), tenantParam(r), h.Now())
	if err != nil {
		writeServiceError(w, "Failed to get cycle", err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c))
}

// DeclarePreference records one person's answer for one slot.
func (h *Handler) DeclarePreference(w http.ResponseWriter, r *http.Request) {
	pid, err := engine.ParseParticipantID(chi.URLParam(r, "participant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid participant id", err)
		return
	}

	var req DeclarePreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	out, err := h.Service.DeclarePreference(r.Context(), tenantParam(r), room.Declaration{
		Participant: pid,
		Profile: engine.Profile{
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
		Slot:       chi.URLParam(r, "slot"),
		Preference: engine.Preference(req.Preference),
	}, h.Now())
	if err != nil {
		writeServiceError(w, "Failed to declare preference", err)
		return
	}

	writeJSON(w, http.StatusOK, DeclarationDTO{
		Changed:     out.Changed,
		AnyPunished: out.AnyPunished,
		Cycle:       toCycleDTO(out.Cycle),
	})
}

// RunAllocation recomputes the rosters of the open cycle.
func (h *Handler) RunAllocation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.RunAllocation(r.Context(), tenantParam(r))
	if err != nil {
		writeServiceError(w, "Failed to run allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(res))
}

// =============================================================================
// KARMA AND ATTENDANCE HANDLERS
// =============================================================================

// ListParticipants returns the karma table.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.Karma(r.Context(), tenantParam(r))
	if err != nil {
		writeServiceError(w, "Failed to list participants", err)
		return
	}
	dtos := make([]KarmaDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toKarmaDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetKarmaEvents returns the karma history of one participant.
func (h *Handler) GetKarmaEvents(w http.ResponseWriter, r *http.Request) {
	pid, err := engine.ParseParticipantID(chi.URLParam(r, "participant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid participant id", err)
		return
	}
	events, err := h.Service.KarmaEvents(r.Context(), tenantParam(r), pid)
	if err != nil {
		writeServiceError(w, "Failed to get karma events", err)
		return
	}
	dtos := make([]KarmaEventDTO, len(events))
	for i, e := range events {
		dtos[i] = toKarmaEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetVerdict returns the frozen rosters of the week in progress.
func (h *Handler) GetVerdict(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.Verdict(r.Context(), tenantParam(r))
	if err != nil {
		writeServiceError(w, "Failed to get verdict", err)
		return
	}
	writeJSON(w, http.StatusOK, toVerdictDTO(v))
}

// ListAttendance returns the pending attendance confirmations.
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.Service.PendingAttendance(r.Context(), tenantParam(r))
	if err != nil {
		writeServiceError(w, "Failed to list attendance", err)
		return
	}
	dtos := make([]PromptDTO, len(prompts))
	for i, p := range prompts {
		dtos[i] = toPromptDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ConfirmAttendance answers a pending confirmation.
func (h *Handler) ConfirmAttendance(w http.ResponseWriter, r *http.Request) {
	var req ConfirmAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ref, err := engine.ParseAttendanceRef(req.Ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid attendance ref", err)
		return
	}

	entry, err := h.Service.ConfirmAttendance(r.Context(), tenantParam(r), ref, req.Attended)
	if err != nil {
		writeServiceError(w, "Failed to confirm attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, toKarmaDTO(entry))
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// GetPolicy returns the room policy the service runs with.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(h.Service.Policy()))
}

// =============================================================================
// HELPERS
// =============================================================================

func tenantParam(r *http.Request) engine.TenantID {
	return engine.TenantID(chi.URLParam(r, "tenant"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine and room errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error(), Code: errorCode(err)}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case engine.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidPreference):
		return http.StatusBadRequest
	case engine.IsClientError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrTenantNotFound):
		return "tenant_not_found"
	case errors.Is(err, engine.ErrUnknownSlot):
		return "unknown_slot"
	case errors.Is(err, engine.ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, engine.ErrStaleCycle):
		return "stale_cycle"
	case errors.Is(err, engine.ErrNoActiveCycle):
		return "no_active_cycle"
	case errors.Is(err, engine.ErrTenantExists):
		return "tenant_exists"
	case errors.Is(err, engine.ErrInvalidPreference):
		return "invalid_preference"
	default:
		return ""
	}
}

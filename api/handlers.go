/*
handlers.go - HTTP API handlers for the estimate service

PURPOSE:
  Exposes the adjudication engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the factory
  (form text -> engine input) and the engine.

ENDPOINTS:
  Health:
    GET    /healthz                    Liveness + store ping

  Estimates:
    POST   /api/estimates              Compute (and store) an estimate
    GET    /api/estimates?limit=N      Recent estimates, newest first
    GET    /api/estimates/{id}         Stored estimate with its lines

  Scenarios:
    GET    /api/scenarios              List built-in COB scenarios
    POST   /api/scenarios/{id}/run     Compute a scenario's estimate

  Admin (development only):
    POST   /api/admin/reset            Clear the estimate log

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: estimate log (nil when storage is disabled)
  - SaveEstimates: whether POST /api/estimates persists results

REQUEST FLOW:
  1. Read the body (bounded)
  2. factory.ParseEstimate: text -> typed input, shape validation
  3. adjudication.CalculateCombinedEstimate (never fails)
  4. Persist, serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, invalid request shape
  - 404: Unknown estimate or scenario
  - 409: Duplicate estimate id
  - 500: Store failures
  - 503: History requested while storage is disabled

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/warp/estimate-engine/adjudication"
	"github.com/warp/estimate-engine/factory"
	"github.com/warp/estimate-engine/store/sqlite"
)

// MaxRequestBytes bounds an estimate request body.
const MaxRequestBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	SaveEstimates bool
}

// NewHandler creates a new handler. A nil store disables persistence and the
// history endpoints.
func NewHandler(store *sqlite.Store, saveEstimates bool) *Handler {
	return &Handler{
		Store:         store,
		SaveEstimates: saveEstimates && store != nil,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and, when configured, store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "storage": h.Store != nil}
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("store ping failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "storage": true})
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ESTIMATE HANDLERS
// =============================================================================

// CreateEstimate computes an estimate from an intake form body.
func (h *Handler) CreateEstimate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		writeFailure(w, r, "Failed to read request body", fmt.Errorf("%w: %w", factory.ErrInvalidRequest, err))
		return
	}

	in, err := factory.ParseEstimate(body)
	if err != nil {
		writeFailure(w, r, "Invalid estimate request", err)
		return
	}

	est := adjudication.CalculateCombinedEstimate(in)

	rec, lines, err := sqlite.RecordFromEstimate("", body, est)
	if err != nil {
		writeFailure(w, r, "Failed to encode estimate", err)
		return
	}

	resp := EstimateResponse{ID: rec.ID, Estimate: est}
	if h.SaveEstimates {
		if err := h.Store.SaveEstimate(r.Context(), rec, lines); err != nil {
			writeFailure(w, r, "Failed to save estimate", err)
			return
		}
		resp.Saved = true
	}

	log.Ctx(r.Context()).Info().
		Str("estimate_id", rec.ID).
		Int("payers", len(est.Payers)).
		Int("procedures", len(est.Procedures)).
		Str("patient_total", est.TotalPatientResponsibility.String()).
		Bool("saved", resp.Saved).
		Msg("estimate computed")

	writeJSON(w, http.StatusCreated, resp)
}

// ListEstimates returns recent stored estimates.
func (h *Handler) ListEstimates(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeFailure(w, r, "Estimate history unavailable", ErrStorageDisabled)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeFailure(w, r, "Invalid limit", fmt.Errorf("%w: limit must be a positive integer", factory.ErrInvalidRequest))
			return
		}
		limit = min(n, 500)
	}

	recs, err := h.Store.ListEstimates(r.Context(), limit)
	if err != nil {
		writeFailure(w, r, "Failed to list estimates", err)
		return
	}

	dtos := make([]EstimateSummaryDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toSummaryDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEstimate returns one stored estimate.
func (h *Handler) GetEstimate(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeFailure(w, r, "Estimate history unavailable", ErrStorageDisabled)
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.Store.GetEstimate(r.Context(), id)
	if err != nil {
		writeFailure(w, r, "Failed to load estimate", err)
		return
	}
	if rec == nil {
		writeFailure(w, r, "Estimate not found", fmt.Errorf("%w: %s", ErrEstimateNotFound, id))
		return
	}

	lines, err := h.Store.EstimateLines(r.Context(), id)
	if err != nil {
		writeFailure(w, r, "Failed to load estimate lines", err)
		return
	}

	dto := EstimateDetailDTO{
		EstimateSummaryDTO: toSummaryDTO(*rec),
		Lines:              make([]EstimateLineDTO, len(lines)),
		Request:            rawJSON(rec.RequestJSON),
		Estimate:           rawJSON(rec.ResultJSON),
	}
	for i, l := range lines {
		dto.Lines[i] = toLineDTO(l)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the built-in scenario catalog.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := factory.Scenarios()
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = toScenarioDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunScenario computes a scenario's estimate. Scenario runs are never stored.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sc, ok := factory.FindScenario(id)
	if !ok {
		writeFailure(w, r, "Scenario not found", fmt.Errorf("%w: %s", ErrUnknownScenario, id))
		return
	}

	in, err := factory.Build(sc.Request)
	if err != nil {
		writeFailure(w, r, "Scenario request is invalid", err)
		return
	}

	writeJSON(w, http.StatusOK, ScenarioRunResponse{
		Scenario: toScenarioDTO(sc),
		Request:  sc.Request,
		Estimate: adjudication.CalculateCombinedEstimate(in),
	})
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetEstimates clears the estimate log.
func (h *Handler) ResetEstimates(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeFailure(w, r, "Estimate history unavailable", ErrStorageDisabled)
		return
	}
	if err := h.Store.Reset(r.Context()); err != nil {
		writeFailure(w, r, "Failed to reset estimates", err)
		return
	}
	log.Ctx(r.Context()).Warn().Msg("estimate log reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Estimate requests use
  the intake form's camelCase shape (factory.EstimateRequestJSON) and the
  computed estimate keeps the engine's JSON; everything the service adds
  around them (ids, stored summaries, errors) is snake_case.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Estimates:
    EstimateResponse, EstimateSummaryDTO, EstimateDetailDTO, EstimateLineDTO

  Scenarios:
    ScenarioDTO, ScenarioRunResponse

VALIDATION:
  Validation is done by factory.Build, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/estimate.go: EstimateRequestJSON
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/estimate-engine/adjudication"
	"github.com/warp/estimate-engine/factory"
	"github.com/warp/estimate-engine/store/sqlite"
)

// =============================================================================
// ESTIMATES
// =============================================================================

// EstimateResponse is returned by POST /api/estimates.
type EstimateResponse struct {
	ID       string                 `json:"id"`
	Saved    bool                   `json:"saved"`
	Estimate *adjudication.Estimate `json:"estimate"`
}

// EstimateSummaryDTO is one row of the estimate history.
type EstimateSummaryDTO struct {
	ID                         string  `json:"id"`
	PatientName                string  `json:"patient_name"`
	ServiceDate                string  `json:"service_date,omitempty"`
	TotalPatientResponsibility float64 `json:"total_patient_responsibility"`
	PayerCount                 int     `json:"payer_count"`
	ProcedureCount             int     `json:"procedure_count"`
	CreatedAt                  string  `json:"created_at"`
}

// EstimateLineDTO is one procedure as adjudicated by one payer.
type EstimateLineDTO struct {
	PayerID         string  `json:"payer_id"`
	PayerRank       string  `json:"payer_rank"`
	ProcedureID     string  `json:"procedure_id"`
	CPTCode         string  `json:"cpt_code"`
	ProcessingOrder int     `json:"processing_order"`
	Allowed         float64 `json:"allowed"`
	PatientShare    float64 `json:"patient_share"`
	PayerPayment    float64 `json:"payer_payment"`
	BalanceAfter    float64 `json:"balance_after"`
}

// EstimateDetailDTO is a stored estimate with its lines and full result.
type EstimateDetailDTO struct {
	EstimateSummaryDTO
	Lines    []EstimateLineDTO `json:"lines"`
	Request  json.RawMessage   `json:"request"`
	Estimate json.RawMessage   `json:"estimate"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a built-in scenario.
type ScenarioDTO struct {
	ID                            string `json:"id"`
	Name                          string `json:"name"`
	Description                   string `json:"description"`
	ExpectedPatientResponsibility string `json:"expected_patient_responsibility"`
}

// ScenarioRunResponse is returned by POST /api/scenarios/{id}/run.
type ScenarioRunResponse struct {
	Scenario ScenarioDTO                 `json:"scenario"`
	Request  factory.EstimateRequestJSON `json:"request"`
	Estimate *adjudication.Estimate      `json:"estimate"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSummaryDTO(rec sqlite.EstimateRecord) EstimateSummaryDTO {
	dto := EstimateSummaryDTO{
		ID:                         rec.ID,
		PatientName:                rec.PatientName,
		TotalPatientResponsibility: rec.TotalPatient.Float64(),
		PayerCount:                 rec.PayerCount,
		ProcedureCount:             rec.ProcedureCount,
		CreatedAt:                  rec.CreatedAt.Format(time.RFC3339),
	}
	if !rec.ServiceDate.IsZero() {
		dto.ServiceDate = rec.ServiceDate.Format(time.DateOnly)
	}
	return dto
}

func toLineDTO(l sqlite.LineRecord) EstimateLineDTO {
	return EstimateLineDTO{
		PayerID:         l.PayerID,
		PayerRank:       l.PayerRank,
		ProcedureID:     l.ProcedureID,
		CPTCode:         l.CPTCode,
		ProcessingOrder: l.ProcessingOrder,
		Allowed:         l.Allowed.Float64(),
		PatientShare:    l.PatientShare.Float64(),
		PayerPayment:    l.PayerPayment.Float64(),
		BalanceAfter:    l.BalanceAfter.Float64(),
	}
}

func toScenarioDTO(s factory.Scenario) ScenarioDTO {
	return ScenarioDTO{
		ID:                            s.ID,
		Name:                          s.Name,
		Description:                   s.Description,
		ExpectedPatientResponsibility: s.Expected,
	}
}

// rawJSON guards against rows whose stored JSON is empty.
func rawJSON(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}

/*
Package adjudication is the patient-estimate engine.

PURPOSE:
  Given billed procedures, one to three payer benefit configurations and the
  service metadata, compute what each payer pays, what the patient owes and
  why. The output carries a step-by-step audit trail per procedure per payer.

KEY CONCEPTS IN THIS FILE (types.go):
  - Procedure: a billed service line, never mutated
  - Benefits: one payer's plan design (scope, copay policy, limits)
  - Accumulators: deductible/OOP met totals, see accumulators.go
  - Payer: benefits + accumulators + per-procedure overrides
  - Estimate: the full itemized result

DESIGN PRINCIPLES:
  1. Pure: no I/O, no clock, no shared state. Same input, same output.
  2. Precision: every amount is money.Money, held at cents
  3. Total: malformed input degrades to zero, the engine never errors
  4. Snapshots: accumulators are values, every update returns a new one

PIPELINE (per payer, per procedure):
  PriceAllowed -> CopayMask -> EvaluateCoverageGate -> AdjudicateLine
  -> ResolveCOBPayment (non-primary) -> balance carried to the next payer

SEE ALSO:
  - estimate.go: CalculateCombinedEstimate, the orchestrator
  - waterfall.go: copay -> deductible -> coinsurance -> OOP cap
  - cob.go: Traditional / Non-Duplication / Carve-Out
*/
package adjudication

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/estimate-engine/money"
	"github.com/warp/estimate-engine/propensity"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// PlanScope decides which accumulators gate cost sharing.
type PlanScope string

const (
	ScopeIndividual      PlanScope = "Individual"
	ScopeEmbeddedFamily  PlanScope = "EmbeddedFamily"
	ScopeAggregateFamily PlanScope = "AggregateFamily"
)

// ParsePlanScope resolves a plan type; unknown values are Individual.
func ParsePlanScope(s string) PlanScope {
	switch normalize(s) {
	case "embeddedfamily", "embedded_family", "embedded":
		return ScopeEmbeddedFamily
	case "aggregatefamily", "aggregate_family", "aggregate":
		return ScopeAggregateFamily
	default:
		return ScopeIndividual
	}
}

// tracksIndividual reports whether the scope writes individual accumulators.
func (s PlanScope) tracksIndividual() bool { return s != ScopeAggregateFamily }

// tracksFamily reports whether the scope reads or writes family accumulators.
func (s PlanScope) tracksFamily() bool { return s != ScopeIndividual }

// CopayPolicy decides which lines of a day may carry a copay.
type CopayPolicy string

const (
	CopayStandardWaterfall CopayPolicy = "standard_waterfall"
	CopayHighestOnlyPerDay CopayPolicy = "highest_copay_only_per_day"
	CopayByCategoryPerDay  CopayPolicy = "copay_by_category_per_day"
	CopayOnlyIfPresent     CopayPolicy = "copay_only_if_present"
)

// ParseCopayPolicy resolves a copay policy; unknown values are standard_waterfall.
func ParseCopayPolicy(s string) CopayPolicy {
	switch CopayPolicy(normalize(s)) {
	case CopayHighestOnlyPerDay:
		return CopayHighestOnlyPerDay
	case CopayByCategoryPerDay:
		return CopayByCategoryPerDay
	case CopayOnlyIfPresent:
		return CopayOnlyIfPresent
	default:
		return CopayStandardWaterfall
	}
}

// DeductibleAllocation decides the order lines are processed for one payer.
type DeductibleAllocation string

const (
	AllocateHighestAllowedFirst DeductibleAllocation = "highest_allowed_first"
	AllocateLineItemOrder       DeductibleAllocation = "line_item_order"
)

// ParseDeductibleAllocation folds the legacy "line_order" spelling into
// line_item_order.
func ParseDeductibleAllocation(s string) DeductibleAllocation {
	switch normalize(s) {
	case "line_item_order", "line_order":
		return AllocateLineItemOrder
	default:
		return AllocateHighestAllowedFirst
	}
}

// MPDSchedule is a multiple-procedure discount schedule.
type MPDSchedule string

const (
	MPD100_50_50 MPDSchedule = "100_50_50"
	MPD100_50_25 MPDSchedule = "100_50_25"
	MPD100_25_25 MPDSchedule = "100_25_25"
)

// ParseMPDSchedule resolves a multiple-procedure schedule; unknown values are 100_50_50.
func ParseMPDSchedule(s string) MPDSchedule {
	switch MPDSchedule(normalize(s)) {
	case MPD100_50_25:
		return MPD100_50_25
	case MPD100_25_25:
		return MPD100_25_25
	default:
		return MPD100_50_50
	}
}

// Factors returns the allowed-amount multiplier per surgical rank.
func (s MPDSchedule) Factors() []decimal.Decimal {
	half := decimal.RequireFromString("0.5")
	quarter := decimal.RequireFromString("0.25")
	switch s {
	case MPD100_50_25:
		return []decimal.Decimal{decimal.NewFromInt(1), half, quarter}
	case MPD100_25_25:
		return []decimal.Decimal{decimal.NewFromInt(1), quarter, quarter}
	default:
		return []decimal.Decimal{decimal.NewFromInt(1), half, half}
	}
}

// Network is the payer's network status for this provider.
type Network string

const (
	InNetwork    Network = "in-network"
	OutOfNetwork Network = "out-of-network"
)

// ParseNetwork resolves a network status; anything not out-of-network is in-network.
func ParseNetwork(s string) Network {
	switch normalize(s) {
	case "out-of-network", "out_of_network", "oon":
		return OutOfNetwork
	default:
		return InNetwork
	}
}

// Tag is the short label used in accumulator audit steps.
func (n Network) Tag() string {
	if n == OutOfNetwork {
		return "OON"
	}
	return "INN"
}

// PayerCategory is the line of business of a payer.
type PayerCategory string

const (
	CategoryCommercial  PayerCategory = "commercial"
	CategoryMedicare    PayerCategory = "medicare"
	CategoryMedicaid    PayerCategory = "medicaid"
	CategoryAuto        PayerCategory = "auto"
	CategoryWorkersComp PayerCategory = "workers_comp"
)

// ParsePayerCategory resolves a payer type; unknown values are commercial.
func ParsePayerCategory(s string) PayerCategory {
	switch normalize(s) {
	case "medicare":
		return CategoryMedicare
	case "medicaid":
		return CategoryMedicaid
	case "auto", "auto_insurance":
		return CategoryAuto
	case "workers_comp", "workerscomp", "workers_compensation":
		return CategoryWorkersComp
	default:
		return CategoryCommercial
	}
}

// Rank is the payer position in the coordination chain.
type Rank string

const (
	RankPrimary   Rank = "Primary"
	RankSecondary Rank = "Secondary"
	RankTertiary  Rank = "Tertiary"
)

// ParseRank resolves a payer rank; unknown values are Primary.
func ParseRank(s string) Rank {
	switch normalize(s) {
	case "secondary":
		return RankSecondary
	case "tertiary":
		return RankTertiary
	default:
		return RankPrimary
	}
}

// Order is the sort key of a rank.
func (r Rank) Order() int {
	switch r {
	case RankSecondary:
		return 2
	case RankTertiary:
		return 3
	default:
		return 1
	}
}

// TherapyDiscipline is a visit-limited therapy category.
type TherapyDiscipline string

const (
	TherapyPhysical     TherapyDiscipline = "physical"
	TherapyOccupational TherapyDiscipline = "occupational"
	TherapySpeech       TherapyDiscipline = "speech"
)

// therapyDiscipline maps a procedure category to its discipline.
func therapyDiscipline(category string) (TherapyDiscipline, bool) {
	switch d := TherapyDiscipline(strings.ToLower(strings.TrimSpace(category))); d {
	case TherapyPhysical, TherapyOccupational, TherapySpeech:
		return d, true
	}
	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// =============================================================================
// PROCEDURE & BENEFITS
// =============================================================================

// Procedure is one billed service line.
type Procedure struct {
	ID            string      `json:"id"`
	CPTCode       string      `json:"cptCode"`
	BilledAmount  money.Money `json:"billedAmount"`
	Units         int         `json:"units"`
	Category      string      `json:"category"`
	Preventive    bool        `json:"isPreventive"`
	DateOfService time.Time   `json:"dateOfService"`
	Modifiers     string      `json:"modifiers,omitempty"`
	DxCode        string      `json:"dxCode,omitempty"`
}

// BilledUnits is the unit count, never below one.
func (p Procedure) BilledUnits() int {
	if p.Units < 1 {
		return 1
	}
	return p.Units
}

// PlanLimits are one network's deductible, OOP and coinsurance terms.
type PlanLimits struct {
	IndividualDeductible money.Money     `json:"individualDeductible"`
	FamilyDeductible     money.Money     `json:"familyDeductible"`
	IndividualOOPMax     money.Money     `json:"individualOopMax"`
	FamilyOOPMax         money.Money     `json:"familyOopMax"`
	CoinsurancePct       decimal.Decimal `json:"coinsurancePercentage"`
}

// TherapyVisits counts visits (limits or usage) per discipline.
type TherapyVisits struct {
	Physical     int `json:"physical"`
	Occupational int `json:"occupational"`
	Speech       int `json:"speech"`
}

func (v TherapyVisits) Get(d TherapyDiscipline) int {
	switch d {
	case TherapyPhysical:
		return v.Physical
	case TherapyOccupational:
		return v.Occupational
	case TherapySpeech:
		return v.Speech
	}
	return 0
}

// With returns a copy with the discipline count replaced.
func (v TherapyVisits) With(d TherapyDiscipline, n int) TherapyVisits {
	switch d {
	case TherapyPhysical:
		v.Physical = n
	case TherapyOccupational:
		v.Occupational = n
	case TherapySpeech:
		v.Speech = n
	}
	return v
}

// DMERentalCap limits cumulative rental payments to the purchase price.
type DMERentalCap struct {
	Applies       bool        `json:"applies"`
	PurchasePrice money.Money `json:"purchasePrice"`
}

// Benefits is one payer's plan design.
type Benefits struct {
	PlanScope            PlanScope            `json:"planType"`
	CopayPolicy          CopayPolicy          `json:"copayLogic"`
	DeductibleAllocation DeductibleAllocation `json:"deductibleAllocation"`
	MPDSchedule          MPDSchedule          `json:"multiProcedureLogic"`
	InNetwork            PlanLimits           `json:"inNetwork"`
	OutOfNetwork         PlanLimits           `json:"outOfNetwork"`
	TherapyVisitLimits   TherapyVisits        `json:"therapyVisitLimits"`
	DMERentalCap         DMERentalCap         `json:"dmeRentalCap"`
}

// Limits returns the terms for a network status.
func (b Benefits) Limits(n Network) PlanLimits {
	if n == OutOfNetwork {
		return b.OutOfNetwork
	}
	return b.InNetwork
}

// ProcedureBenefit is a payer's override for one procedure.
type ProcedureBenefit struct {
	ProcedureID string      `json:"procedureId"`
	Allowed     money.Money `json:"allowedAmount"`
	Copay       money.Money `json:"copay"`

	// CoinsurancePct is nil when the plan default applies.
	CoinsurancePct *decimal.Decimal `json:"coinsurancePercentage,omitempty"`
}

// =============================================================================
// PAYER
// =============================================================================

type Insurance struct {
	Name     string `json:"name"`
	MemberID string `json:"memberId"`
}

// Payer is one coverage in the chain.
type Payer struct {
	ID                  string             `json:"id"`
	Rank                Rank               `json:"rank"`
	Insurance           Insurance          `json:"insurance"`
	Network             Network            `json:"networkStatus"`
	Category            PayerCategory      `json:"payerType"`
	COBMethod           COBMethod          `json:"cobMethod"`
	SubrogationActive   bool               `json:"subrogationActive"`
	Benefits            Benefits           `json:"benefits"`
	PatientAccumulators Accumulators       `json:"patientAccumulators"`
	FamilyAccumulators  *Accumulators      `json:"familyAccumulators"`
	ProcedureBenefits   []ProcedureBenefit `json:"procedureBenefits"`
}

// BenefitFor returns the first override for a procedure id.
func (p Payer) BenefitFor(procedureID string) (ProcedureBenefit, bool) {
	for _, pb := range p.ProcedureBenefits {
		if pb.ProcedureID == procedureID {
			return pb, true
		}
	}
	return ProcedureBenefit{}, false
}

// =============================================================================
// METADATA
// =============================================================================

type PatientInfo struct {
	Name         string `json:"name"`
	DOB          string `json:"dob"`
	Relationship string `json:"relationship"`
	Gender       string `json:"gender"`
}

type PracticeInfo struct {
	Name  string `json:"name"`
	TaxID string `json:"taxId"`
}

type ProviderInfo struct {
	Name  string `json:"name"`
	NPI   string `json:"npi"`
	Phone string `json:"phone"`
}

type ServiceInfo struct {
	Date           time.Time `json:"date"`
	PlaceOfService string    `json:"placeOfService"`
}

// MetaData describes who was seen, by whom, where and when.
type MetaData struct {
	Patient  PatientInfo  `json:"patient"`
	Practice PracticeInfo `json:"practice"`
	Provider ProviderInfo `json:"provider"`
	Service  ServiceInfo  `json:"service"`
}

// =============================================================================
// RESULT
// =============================================================================

// BreakdownStep is one audit line. PatientOwes is negative for an OOP cap.
type BreakdownStep struct {
	Description string      `json:"description"`
	PatientOwes money.Money `json:"patientOwes"`
	Notes       string      `json:"notes"`
}

// AdjudicatedProcedure is one procedure as processed by one payer.
type AdjudicatedProcedure struct {
	ProcedureID       string          `json:"id"`
	CPTCode           string          `json:"cptCode"`
	OriginalBilled    money.Money     `json:"originalBilledAmount"`
	FinalAllowed      money.Money     `json:"finalAllowedAmount"`
	PatientCostShare  money.Money     `json:"patientCostShare"`
	PayerPayment      money.Money     `json:"payerPayment"`
	BalanceAfterPayer money.Money     `json:"balanceAfterPayer"`
	ProcessingOrder   int             `json:"processingOrder"`
	Breakdown         []BreakdownStep `json:"calculationBreakdown"`
}

// PayerAdjudication is one payer's block in the chain.
type PayerAdjudication struct {
	Payer                 Payer                  `json:"payer"`
	Procedures            []AdjudicatedProcedure `json:"procedureEstimates"`
	TotalPayerPayment     money.Money            `json:"totalPayerPaymentThisPayer"`
	TotalPatientShare     money.Money            `json:"totalPatientShareThisPayer"`
	TotalRemainingBalance money.Money            `json:"totalRemainingBalanceAfterPayer"`
}

// ProcedureSummary follows one procedure across the whole chain.
type ProcedureSummary struct {
	ProcedureID      string      `json:"id"`
	Billed           money.Money `json:"billed"`
	TotalPayerPaid   money.Money `json:"totalPayerPaid"`
	RemainingBalance money.Money `json:"remainingBalance"`
	NonCOBLiability  money.Money `json:"nonCobLiability"`
}

// Estimate is the full result of CalculateCombinedEstimate.
type Estimate struct {
	MetaData                   MetaData               `json:"metaData"`
	Payers                     []Payer                `json:"payers"`
	Procedures                 []Procedure            `json:"procedures"`
	TotalPatientResponsibility money.Money            `json:"totalPatientResponsibility"`
	Chain                      []PayerAdjudication    `json:"adjudicationChain"`
	NonCOBLiability            map[string]money.Money `json:"nonCobPatientLiability"`
	ProcedureSummaries         []ProcedureSummary     `json:"procedureSummaries"`
	Propensity                 *propensity.Result     `json:"propensity"`
}

// EstimateInput is everything CalculateCombinedEstimate reads.
type EstimateInput struct {
	Payers     []Payer
	Procedures []Procedure
	MetaData   MetaData

	// Propensity is nil when no financial signals were collected.
	Propensity *propensity.Input
}

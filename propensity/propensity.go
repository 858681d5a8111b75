/*
Package propensity scores how likely a patient is to pay an estimate.

PURPOSE:
  A display-only heuristic. It reads patient-reported financial signals
  and the computed total, and returns a 0-100 score, a tier and suggested
  next actions for the front desk. It does not feed back into adjudication.

SCORING:
  Start at 50, then add each factor's impact:
    bill size            -30 .. +10
    payment history      -25 .. +25
    financial confidence -25 .. +15
    outstanding balance  -20 .. +5
    employment           -20 .. +10
    bill-to-income       -20 .. 0, plus -10 for low income and 3+ household
    HSA-compatible plan  -15
  Clamp to [0, 100] and round.

TIERS:
  High > 75, Medium > 40, Low otherwise.
*/
package propensity

import (
	"github.com/shopspring/decimal"

	"github.com/warp/estimate-engine/money"
)

type PaymentHistory string

const (
	HistoryOnTime        PaymentHistory = "on_time"
	HistoryPaymentPlan   PaymentHistory = "payment_plan"
	HistorySometimesLate PaymentHistory = "sometimes_late"
	HistoryDifficulty    PaymentHistory = "difficulty"
)

type FinancialConfidence string

const (
	ConfidenceExcellent        FinancialConfidence = "excellent"
	ConfidenceGood             FinancialConfidence = "good"
	ConfidenceFair             FinancialConfidence = "fair"
	ConfidenceNeedsImprovement FinancialConfidence = "needs_improvement"
)

type EmploymentStatus string

const (
	EmploymentEmployed   EmploymentStatus = "employed"
	EmploymentUnemployed EmploymentStatus = "unemployed"
	EmploymentStudent    EmploymentStatus = "student"
	EmploymentRetired    EmploymentStatus = "retired"
	EmploymentOther      EmploymentStatus = "other"
)

// IncomeBand is a self-reported household income range.
type IncomeBand string

const (
	IncomeUnder25k   IncomeBand = "<25k"
	Income25kTo50k   IncomeBand = "25k-50k"
	Income50kTo100k  IncomeBand = "50k-100k"
	Income100kTo200k IncomeBand = "100k-200k"
	IncomeOver200k   IncomeBand = ">200k"
)

type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

// Input is what the patient reported. Empty strings mean "not asked".
type Input struct {
	PaymentHistory      PaymentHistory      `json:"paymentHistory"`
	FinancialConfidence FinancialConfidence `json:"financialConfidence"`

	// OutstandingBalance is nil when the question was left blank.
	OutstandingBalance *money.Money `json:"outstandingBalance"`

	EmploymentStatus EmploymentStatus `json:"employmentStatus"`
	HouseholdIncome  IncomeBand       `json:"householdIncome"`
	HouseholdSize    int              `json:"householdSize"`
	HSACompatible    bool             `json:"isHSACompatible"`
}

// Empty reports whether none of the scored questions were answered.
func (in *Input) Empty() bool {
	return in == nil ||
		(in.PaymentHistory == "" &&
			in.FinancialConfidence == "" &&
			in.OutstandingBalance == nil &&
			in.EmploymentStatus == "" &&
			in.HouseholdIncome == "")
}

// Factor is one contribution to the score.
type Factor struct {
	Label  string `json:"label"`
	Impact int    `json:"impact"`
}

type ActionType string

const (
	ActionPrimary   ActionType = "primary"
	ActionSecondary ActionType = "secondary"
)

type Action struct {
	Text string     `json:"text"`
	Type ActionType `json:"type"`
}

// Result is the scored outcome.
type Result struct {
	Score          int      `json:"score"`
	Tier           Tier     `json:"tier"`
	Recommendation string   `json:"recommendation"`
	Actions        []Action `json:"dynamicActions"`
	Factors        []Factor `json:"factors"`
}

// =============================================================================
// IMPACT TABLES
// =============================================================================

var historyImpact = map[PaymentHistory]int{
	HistoryOnTime:        25,
	HistoryPaymentPlan:   5,
	HistorySometimesLate: -10,
	HistoryDifficulty:    -25,
}

var confidenceImpact = map[FinancialConfidence]int{
	ConfidenceExcellent:        15,
	ConfidenceGood:             5,
	ConfidenceFair:             -10,
	ConfidenceNeedsImprovement: -25,
}

var employmentImpact = map[EmploymentStatus]int{
	EmploymentEmployed:   10,
	EmploymentRetired:    5,
	EmploymentStudent:    -5,
	EmploymentUnemployed: -20,
	EmploymentOther:      0,
}

// incomeMidpoints turns a band into a representative annual income.
var incomeMidpoints = map[IncomeBand]int64{
	IncomeUnder25k:   12500,
	Income25kTo50k:   37500,
	Income50kTo100k:  75000,
	Income100kTo200k: 150000,
	IncomeOver200k:   250000,
}

var (
	highStress     = decimal.RequireFromString("0.10")
	moderateStress = decimal.RequireFromString("0.05")
)

// =============================================================================
// SCORE
// =============================================================================

// Score rates a patient against the estimate total. It returns nil when
// the input is nil or empty.
func Score(total money.Money, in *Input) *Result {
	if in.Empty() {
		return nil
	}

	s := &scorer{score: 50}

	switch {
	case total.GreaterThan(money.FromInt(5000)):
		s.add("High Bill Amount (> $5k)", -30)
	case total.GreaterThan(money.FromInt(1000)):
		s.add("High Bill Amount (> $1k)", -20)
	case total.GreaterThan(money.FromInt(200)):
		s.add("Moderate Bill Amount", -5)
	default:
		s.add("Low Bill Amount (< $200)", 10)
	}

	s.add("Payment History", historyImpact[in.PaymentHistory])
	s.add("Financial Confidence", confidenceImpact[in.FinancialConfidence])

	if in.OutstandingBalance != nil {
		switch bal := *in.OutstandingBalance; {
		case bal.GreaterThan(money.FromInt(1000)):
			s.add("High Outstanding Balance", -20)
		case bal.IsPositive():
			s.add("Existing Balance", -10)
		default:
			s.add("No Outstanding Balance", 5)
		}
	}

	s.add("Employment Status", employmentImpact[in.EmploymentStatus])

	if income, ok := incomeMidpoints[in.HouseholdIncome]; ok {
		stress := total.Value.Div(decimal.NewFromInt(income))
		switch {
		case stress.GreaterThan(highStress):
			s.add("High Bill-to-Income Ratio (>10%)", -20)
		case stress.GreaterThan(moderateStress):
			s.add("Moderate Bill-to-Income Ratio (>5%)", -10)
		}
		if income < 50000 && in.HouseholdSize > 2 {
			s.add("Low Income & Multiple Dependents", -10)
		}
	}

	if in.HSACompatible {
		s.add("High Deductible Plan (HSA)", -15)
	}

	score := min(max(s.score, 0), 100)
	tier := TierFor(score)
	return &Result{
		Score:          score,
		Tier:           tier,
		Recommendation: recommendations[tier],
		Actions:        append([]Action(nil), actions[tier]...),
		Factors:        s.factors,
	}
}

type scorer struct {
	score   int
	factors []Factor
}

// add records a non-zero impact.
func (s *scorer) add(label string, impact int) {
	if impact == 0 {
		return
	}
	s.score += impact
	s.factors = append(s.factors, Factor{Label: label, Impact: impact})
}

// TierFor maps a clamped score to its tier.
func TierFor(score int) Tier {
	switch {
	case score > 75:
		return TierHigh
	case score > 40:
		return TierMedium
	default:
		return TierLow
	}
}

var recommendations = map[Tier]string{
	TierHigh:   "Patient has a high likelihood of paying. Standard billing procedures are recommended.",
	TierMedium: "Patient may need flexible options. Proactively offer short-term payment plans.",
	TierLow:    "Patient has a high risk of non-payment. Immediate engagement with a financial counselor is strongly recommended.",
}

var actions = map[Tier][]Action{
	TierHigh: {
		{Text: "Pay in Full Now", Type: ActionPrimary},
		{Text: "View Short-Term Plans", Type: ActionSecondary},
	},
	TierMedium: {
		{Text: "Setup a Payment Plan", Type: ActionPrimary},
		{Text: "Contact Financial Counselor", Type: ActionSecondary},
	},
	TierLow: {
		{Text: "Contact Financial Counselor", Type: ActionPrimary},
		{Text: "Learn about Financial Assistance", Type: ActionSecondary},
	},
}

package adjudication

import (
	"github.com/warp/estimate-engine/money"
)

// =============================================================================
// COB RESOLVER
// =============================================================================

// COBMethod is how a non-primary payer reduces its payment for what earlier
// payers already paid.
type COBMethod string

const (
	COBTraditional    COBMethod = "traditional"
	COBNonDuplication COBMethod = "non_duplication"
	COBCarveOut       COBMethod = "carve_out"
)

// ResolveCOBMethod folds every known spelling into a method. Anything
// unrecognized coordinates as Traditional.
func ResolveCOBMethod(raw string) COBMethod {
	switch normalize(raw) {
	case "nonduplication", "non_duplication", "non-duplication", "non-dup", "nondup":
		return COBNonDuplication
	case "carveout", "carve_out", "carve-out", "maintenance_of_benefits", "mob":
		return COBCarveOut
	default:
		// traditional, full, full_benefit, "100% allowable", medicare_secondary,
		// medicaid_payer_last_resort, liability_no_fault and blanks.
		return COBTraditional
	}
}

// COBInput is the as-if-primary outcome of a non-primary payer plus what
// the chain has already settled for the line.
type COBInput struct {
	AsIfPayerPayment money.Money
	AsIfPatientShare money.Money

	// AsIfAllowed is this payer's final allowed amount for the line.
	AsIfAllowed money.Money

	// PriorPaid is the sum of earlier payers' payments for the line.
	PriorPaid money.Money

	// ClaimAmount is the COB-eligible balance carried into this payer.
	ClaimAmount money.Money
}

// ResolveCOBPayment returns what a non-primary payer actually pays. The
// result is always within [0, ClaimAmount].
//
//	Traditional:     min(asIfPay, allowed - priorPaid, claim)
//	Non-Duplication: min(asIfPay - priorPaid, claim)
//	Carve-Out:       min(asIfPatientShare, claim)
func ResolveCOBPayment(method COBMethod, in COBInput) money.Money {
	claim := in.ClaimAmount.NonNegative()
	var payment money.Money
	switch method {
	case COBNonDuplication:
		payment = money.Min(in.AsIfPayerPayment.Sub(in.PriorPaid), claim)
	case COBCarveOut:
		payment = money.Min(in.AsIfPatientShare, claim)
	default:
		payment = money.Min(money.Min(in.AsIfPayerPayment, in.AsIfAllowed.Sub(in.PriorPaid)), claim)
	}
	return payment.Clamp(money.Zero, claim)
}

// TPLBlocks reports whether a liability payer with active subrogation
// directly ahead of current blocks it. Only commercial plans are blocked.
func TPLBlocks(prior, current Payer) bool {
	liability := prior.Category == CategoryAuto || prior.Category == CategoryWorkersComp
	return liability && prior.SubrogationActive && current.Category == CategoryCommercial
}

package adjudication

import (
	"fmt"
	"strings"

	"github.com/warp/estimate-engine/money"
)

// =============================================================================
// COVERAGE GATE - Visit limits and DME rental caps
// =============================================================================

// Gate is the ceiling a benefit limit puts on a line's allowed amount.
type Gate struct {
	// Bounded is false when no limit applies to the line.
	Bounded bool
	Cap     money.Money
	Steps   []BreakdownStep
}

// Apply returns min(allowed, cap).
func (g Gate) Apply(allowed money.Money) money.Money {
	if !g.Bounded {
		return allowed
	}
	return money.Min(allowed, g.Cap.NonNegative())
}

// Exhausted reports whether the gate blocks the line entirely.
func (g Gate) Exhausted() bool {
	return g.Bounded && !g.Cap.IsPositive()
}

// EvaluateCoverageGate checks a line against therapy visit limits and the
// DME rental cap using the patient-level snapshot in effect for the payer.
func EvaluateCoverageGate(proc Procedure, benefits Benefits, patient Accumulators) Gate {
	if d, ok := therapyDiscipline(proc.Category); ok {
		limit := benefits.TherapyVisitLimits.Get(d)
		used := patient.TherapyVisitsUsed.Get(d)
		if limit > 0 && used >= limit {
			return Gate{
				Bounded: true,
				Cap:     money.Zero,
				Steps: []BreakdownStep{{
					Description: "Limit Exhausted",
					PatientOwes: money.Zero,
					Notes:       fmt.Sprintf("Annual visit limit of %d reached for %s.", limit, proc.Category),
				}},
			}
		}
	}

	if isDME(proc.Category) && benefits.DMERentalCap.Applies {
		purchase := benefits.DMERentalCap.PurchasePrice
		paid := patient.DMERentalPaid
		if purchase.IsPositive() && paid.GreaterThanOrEqual(purchase) {
			return Gate{
				Bounded: true,
				Cap:     money.Zero,
				Steps: []BreakdownStep{{
					Description: "Non-Covered",
					PatientOwes: money.Zero,
					Notes:       "DME rental cap reached (purchase price met).",
				}},
			}
		}
		if purchase.IsPositive() {
			return Gate{Bounded: true, Cap: purchase.Sub(paid)}
		}
	}

	return Gate{}
}

func isDME(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), "dme")
}

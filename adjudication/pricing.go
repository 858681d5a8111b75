package adjudication

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/estimate-engine/money"
)

// =============================================================================
// ALLOWED-AMOUNT PRICER
// =============================================================================

// PricedLine is the payer-specific allowed amount for one procedure.
type PricedLine struct {
	Allowed money.Money
	Notes   []string
}

// PriceAllowed prices every procedure for one payer. The result is aligned
// with procs by index.
//
// Base allowed is min(override x units, billed). Within a session (same
// date, provider and place of service) surgical lines are ranked by base
// allowed, highest first, and the Nth is multiplied by the Nth factor of
// the payer's MPD schedule. Ranks past the schedule reuse its last factor.
func PriceAllowed(payer Payer, procs []Procedure, meta MetaData) []PricedLine {
	priced := make([]PricedLine, len(procs))
	sessions := make(map[string][]int)
	var order []string

	for i, proc := range procs {
		pb, ok := payer.BenefitFor(proc.ID)
		if !ok {
			priced[i] = PricedLine{Allowed: money.Zero, Notes: []string{"No allowed amount on file for this payer."}}
		} else {
			perUnit := pb.Allowed.NonNegative().Mul(decimal.NewFromInt(int64(proc.BilledUnits())))
			priced[i] = PricedLine{Allowed: money.Min(perUnit, proc.BilledAmount.NonNegative())}
		}

		key := sessionKey(proc, meta)
		if _, seen := sessions[key]; !seen {
			order = append(order, key)
		}
		sessions[key] = append(sessions[key], i)
	}

	factors := payer.Benefits.MPDSchedule.Factors()
	for _, key := range order {
		var surgical []int
		for _, i := range sessions[key] {
			if isSurgery(procs[i].Category) {
				surgical = append(surgical, i)
			}
		}
		sort.SliceStable(surgical, func(a, b int) bool {
			return priced[surgical[a]].Allowed.GreaterThan(priced[surgical[b]].Allowed)
		})
		for rank, i := range surgical {
			factor := factors[min(rank, len(factors)-1)]
			priced[i].Allowed = priced[i].Allowed.Mul(factor)
			priced[i].Notes = append(priced[i].Notes, fmt.Sprintf(
				"Multiple-procedure rank %d (%s%% policy)", rank+1, factor.Mul(decimal.NewFromInt(100)).Round(0).String()))
		}
	}
	return priced
}

// sessionKey groups lines billed together. A line without its own date
// falls back to the service date.
func sessionKey(proc Procedure, meta MetaData) string {
	date := proc.DateOfService
	if date.IsZero() {
		date = meta.Service.Date
	}
	day := ""
	if !date.IsZero() {
		day = date.Format("2006-01-02")
	}
	return day + "|" + meta.Provider.NPI + "|" + meta.Service.PlaceOfService
}

func isSurgery(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), "surgery")
}

// ProcessingOrder returns procedure indexes in the order one payer
// adjudicates them. Highest-allowed-first is stable on ties.
func ProcessingOrder(alloc DeductibleAllocation, priced []PricedLine) []int {
	order := make([]int, len(priced))
	for i := range order {
		order[i] = i
	}
	if alloc == AllocateLineItemOrder {
		return order
	}
	sort.SliceStable(order, func(a, b int) bool {
		return priced[order[a]].Allowed.GreaterThan(priced[order[b]].Allowed)
	})
	return order
}

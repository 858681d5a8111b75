package adjudication

import (
	"strings"

	"github.com/warp/estimate-engine/money"
)

// =============================================================================
// COPAY POLICY MASK
// =============================================================================

// copayBuckets are the clinical categories that each carry one copay per
// day under copay_by_category_per_day.
var copayBuckets = []string{"Surgery", "Imaging", "Office Visit", "Facility", "Professional"}

// CopayMask reports, per procedure index, whether the payer lets a copay
// apply to the line. Lines are grouped by their own date of service; lines
// without one share an "unknown" day.
func CopayMask(procs []Procedure, payer Payer) []bool {
	mask := make([]bool, len(procs))
	policy := payer.Benefits.CopayPolicy
	if policy != CopayHighestOnlyPerDay && policy != CopayByCategoryPerDay {
		for i := range mask {
			mask[i] = true
		}
		return mask
	}

	days := make(map[string][]int)
	var order []string
	for i, proc := range procs {
		day := "unknown"
		if !proc.DateOfService.IsZero() {
			day = proc.DateOfService.Format("2006-01-02")
		}
		if _, seen := days[day]; !seen {
			order = append(order, day)
		}
		days[day] = append(days[day], i)
	}

	copayOf := func(i int) money.Money {
		pb, _ := payer.BenefitFor(procs[i].ID)
		return pb.Copay
	}

	for _, day := range order {
		lines := days[day]
		if policy == CopayHighestOnlyPerDay {
			if pick, ok := highestCopay(lines, copayOf); ok {
				mask[pick] = true
			}
			continue
		}
		for _, bucket := range copayBuckets {
			var inBucket []int
			for _, i := range lines {
				if strings.EqualFold(strings.TrimSpace(procs[i].Category), bucket) {
					inBucket = append(inBucket, i)
				}
			}
			if pick, ok := highestCopay(inBucket, copayOf); ok {
				mask[pick] = true
			}
		}
	}
	return mask
}

// highestCopay picks the line with the largest copay; the first one wins a tie.
func highestCopay(lines []int, copayOf func(int) money.Money) (int, bool) {
	if len(lines) == 0 {
		return 0, false
	}
	pick := lines[0]
	best := copayOf(pick)
	for _, i := range lines[1:] {
		if cp := copayOf(i); cp.GreaterThan(best) {
			pick, best = i, cp
		}
	}
	return pick, true
}

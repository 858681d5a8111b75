package adjudication_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/estimate-engine/adjudication"
)

func TestPriceAllowed_UnitsAndBilledCap(t *testing.T) {
	perUnit := procedure("inj", "Injection", "250")
	perUnit.Units = 3
	noUnits := procedure("lab", "Lab", "80")
	noUnits.Units = 0

	payer := newPayer("p", adjudication.RankPrimary, adjudication.InNetwork, allowed("inj", "100"), allowed("lab", "45"))
	priced := adjudication.PriceAllowed(payer, []adjudication.Procedure{perUnit, noUnits}, testMeta())

	require.Len(t, priced, 2)
	assertMoney(t, "250.00", priced[0].Allowed, "3 x 100 capped at billed")
	assertMoney(t, "45.00", priced[1].Allowed, "zero units counts as one")
	assert.Empty(t, priced[0].Notes)
}

func TestPriceAllowed_MissingBenefit(t *testing.T) {
	payer := newPayer("p", adjudication.RankPrimary, adjudication.InNetwork)
	priced := adjudication.PriceAllowed(payer, []adjudication.Procedure{officeVisit("A", "100")}, testMeta())

	assertMoney(t, "0.00", priced[0].Allowed)
	assert.Equal(t, []string{"No allowed amount on file for this payer."}, priced[0].Notes)
}

func TestPriceAllowed_MPDRanksSurgeryWithinSession(t *testing.T) {
	// GIVEN: four surgeries and one office visit in one session, 100/50/25
	// WHEN: pricing
	// THEN: surgeries are ranked by allowed, the 4th reuses the last factor

	procs := []adjudication.Procedure{
		procedure("s1", "Surgery", "5000"),
		procedure("s2", "surgery", "5000"),
		procedure("s3", "Surgery", "5000"),
		procedure("s4", "Surgery", "5000"),
		officeVisit("ov", "200"),
	}
	payer := newPayer("p", adjudication.RankPrimary, adjudication.InNetwork,
		allowed("s1", "1000"), allowed("s2", "3000"), allowed("s3", "2000"), allowed("s4", "400"), allowed("ov", "150"))
	payer.Benefits.MPDSchedule = adjudication.MPD100_50_25

	priced := adjudication.PriceAllowed(payer, procs, testMeta())

	assertMoney(t, "250.00", priced[0].Allowed)
	assertMoney(t, "3000.00", priced[1].Allowed)
	assertMoney(t, "1000.00", priced[2].Allowed)
	assertMoney(t, "100.00", priced[3].Allowed)
	assertMoney(t, "150.00", priced[4].Allowed)

	assert.Equal(t, []string{"Multiple-procedure rank 3 (25% policy)"}, priced[0].Notes)
	assert.Equal(t, []string{"Multiple-procedure rank 1 (100% policy)"}, priced[1].Notes)
	assert.Equal(t, []string{"Multiple-procedure rank 2 (50% policy)"}, priced[2].Notes)
	assert.Equal(t, []string{"Multiple-procedure rank 4 (25% policy)"}, priced[3].Notes)
	assert.Empty(t, priced[4].Notes)
}

func TestPriceAllowed_SeparateSessions(t *testing.T) {
	nextDay := procedure("s2", "Surgery", "2000")
	nextDay.DateOfService = serviceDate.Add(24 * time.Hour)
	undated := procedure("s3", "Surgery", "2000")
	undated.DateOfService = time.Time{}

	procs := []adjudication.Procedure{procedure("s1", "Surgery", "2000"), nextDay, undated}
	payer := newPayer("p", adjudication.RankPrimary, adjudication.InNetwork,
		allowed("s1", "1000"), allowed("s2", "1000"), allowed("s3", "800"))

	priced := adjudication.PriceAllowed(payer, procs, testMeta())

	assertMoney(t, "1000.00", priced[0].Allowed)
	assertMoney(t, "1000.00", priced[1].Allowed, "different day, own session")
	assertMoney(t, "400.00", priced[2].Allowed, "undated line falls back to the service date")
}

func TestPriceAllowed_SurgicalTiesKeepLineOrder(t *testing.T) {
	procs := []adjudication.Procedure{procedure("a", "Surgery", "900"), procedure("b", "Surgery", "900")}
	payer := newPayer("p", adjudication.RankPrimary, adjudication.InNetwork, allowed("a", "600"), allowed("b", "600"))

	priced := adjudication.PriceAllowed(payer, procs, testMeta())

	assertMoney(t, "600.00", priced[0].Allowed)
	assertMoney(t, "300.00", priced[1].Allowed)
}

func TestProcessingOrder(t *testing.T) {
	priced := []adjudication.PricedLine{
		{Allowed: usd("100")},
		{Allowed: usd("500")},
		{Allowed: usd("100")},
		{Allowed: usd("300")},
	}

	assert.Equal(t, []int{1, 3, 0, 2}, adjudication.ProcessingOrder(adjudication.AllocateHighestAllowedFirst, priced))
	assert.Equal(t, []int{0, 1, 2, 3}, adjudication.ProcessingOrder(adjudication.AllocateLineItemOrder, priced))
	assert.Empty(t, adjudication.ProcessingOrder(adjudication.AllocateHighestAllowedFirst, nil))
}

func TestMPDSchedule_Factors(t *testing.T) {
	cases := map[adjudication.MPDSchedule][]string{
		adjudication.MPD100_50_50: {"1", "0.5", "0.5"},
		adjudication.MPD100_50_25: {"1", "0.5", "0.25"},
		adjudication.MPD100_25_25: {"1", "0.25", "0.25"},
		"unknown":                 {"1", "0.5", "0.5"},
	}
	for schedule, want := range cases {
		var got []string
		for _, f := range schedule.Factors() {
			got = append(got, f.String())
		}
		assert.Equal(t, want, got, string(schedule))
	}
}

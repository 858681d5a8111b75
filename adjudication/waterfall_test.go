package adjudication_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/estimate-engine/adjudication"
)

func lineInput(allowedAmount string, benefit adjudication.ProcedureBenefit) adjudication.LineInput {
	return adjudication.LineInput{
		Procedure:      officeVisit(benefit.ProcedureID, allowedAmount),
		Benefits:       defaultBenefits(),
		Benefit:        &benefit,
		Allowed:        usd(allowedAmount),
		Network:        adjudication.InNetwork,
		CopayPermitted: true,
	}
}

// =============================================================================
// DEDUCTIBLE & COINSURANCE
// =============================================================================

func TestAdjudicateLine_PartialDeductibleThenCoinsurance(t *testing.T) {
	// GIVEN: $500 deductible with $200 met, 20% coinsurance
	// WHEN: adjudicating $1000 allowed
	// THEN: $300 deductible + 20% of $700 = $440 patient, $560 payer

	in := lineInput("1000", allowed("A", "1000"))
	in.Benefits.InNetwork.IndividualDeductible = usd("500")
	in.Patient.InNetwork.DeductibleMet = usd("200")

	res := adjudication.AdjudicateLine(in)

	assertMoney(t, "440.00", res.PatientShare)
	assertMoney(t, "560.00", res.PayerPayment)
	assertMoney(t, "500.00", res.Patient.InNetwork.DeductibleMet)
	assertMoney(t, "440.00", res.Patient.InNetwork.OOPMet)
	assert.Equal(t, []string{
		"Deductible",
		"Benefit Status Change",
		"Accumulator Update (Ind Deductible - INN)",
		"Coinsurance",
		"Accumulator Update (Ind OOP - INN)",
	}, descriptions(res.Steps))

	assert.Equal(t, "Applied to Individual deductible.", res.Steps[0].Notes)
	assert.Equal(t, "Old: $200.00, Applied: $300.00, New: $500.00", res.Steps[2].Notes)
	assert.Equal(t, "20% of remaining $700.00.", res.Steps[3].Notes)
	assertMoney(t, "140.00", res.Steps[3].PatientOwes)

	// Inputs are values; the caller's snapshot is untouched
	assertMoney(t, "200.00", in.Patient.InNetwork.DeductibleMet)
}

func TestAdjudicateLine_CopayThenCoinsurance(t *testing.T) {
	benefit := allowed("A", "200")
	benefit.Copay = usd("25")

	res := adjudication.AdjudicateLine(lineInput("200", benefit))

	// 25 copay + 20% of 175
	assertMoney(t, "60.00", res.PatientShare)
	step, ok := findStep(res.Steps, "Copay")
	require.True(t, ok)
	assert.Equal(t, "Plan copay of $25.00 applied.", step.Notes)
}

func TestAdjudicateLine_CopayLargerThanAllowed(t *testing.T) {
	benefit := allowed("A", "30")
	benefit.Copay = usd("50")

	res := adjudication.AdjudicateLine(lineInput("30", benefit))

	assertMoney(t, "30.00", res.PatientShare)
	assertMoney(t, "0.00", res.PayerPayment)
	_, hasCoins := findStep(res.Steps, "Coinsurance")
	assert.False(t, hasCoins, "nothing left to coinsure")
}

func TestAdjudicateLine_CopayMaskedOut(t *testing.T) {
	benefit := allowed("A", "100")
	benefit.Copay = usd("40")
	in := lineInput("100", benefit)
	in.CopayPermitted = false
	in.Benefits.CopayPolicy = adjudication.CopayHighestOnlyPerDay

	res := adjudication.AdjudicateLine(in)

	assertMoney(t, "20.00", res.PatientShare, "coinsurance only")
	step, ok := findStep(res.Steps, "Copay")
	require.True(t, ok)
	assertMoney(t, "0.00", step.PatientOwes)
	assert.Contains(t, step.Notes, "highest_copay_only_per_day")
}

func TestAdjudicateLine_PreventiveWaivesEverything(t *testing.T) {
	benefit := allowed("A", "300")
	benefit.Copay = usd("30")
	in := lineInput("300", benefit)
	in.Procedure.Preventive = true
	in.Benefits.InNetwork.IndividualDeductible = usd("1000")

	res := adjudication.AdjudicateLine(in)

	assertMoney(t, "0.00", res.PatientShare)
	assertMoney(t, "300.00", res.PayerPayment)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "Preventive service, copay waived.", res.Steps[0].Notes)
	assert.Equal(t, in.Patient, res.Patient)
}

func TestAdjudicateLine_CoinsuranceOverrideOfZero(t *testing.T) {
	res := adjudication.AdjudicateLine(lineInput("100", allowedWithCoins("A", "100", 0)))

	assertMoney(t, "0.00", res.PatientShare)
	assertMoney(t, "100.00", res.PayerPayment)
	step, ok := findStep(res.Steps, "Coinsurance")
	require.True(t, ok)
	assert.Equal(t, "0% of remaining $100.00.", step.Notes)
}

func TestAdjudicateLine_OutOfNetworkUsesOONTerms(t *testing.T) {
	in := lineInput("1000", allowed("A", "1000"))
	in.Network = adjudication.OutOfNetwork
	in.Benefits.OutOfNetwork.IndividualDeductible = usd("100")

	res := adjudication.AdjudicateLine(in)

	// 100 deductible + 40% of 900
	assertMoney(t, "460.00", res.PatientShare)
	assertMoney(t, "100.00", res.Patient.OutOfNetwork.DeductibleMet)
	assert.True(t, res.Patient.InNetwork.DeductibleMet.IsZero())
	_, ok := findStep(res.Steps, "Accumulator Update (Ind Deductible - OON)")
	assert.True(t, ok)
}

// =============================================================================
// OOP CAP
// =============================================================================

func TestAdjudicateLine_OOPCap(t *testing.T) {
	// GIVEN: $5000 OOP max with $4900 met
	// WHEN: the line would cost the patient $200
	// THEN: $100 is capped away and OOP is met on this line

	in := lineInput("1000", allowed("A", "1000"))
	in.Patient.InNetwork.OOPMet = usd("4900")

	res := adjudication.AdjudicateLine(in)

	assertMoney(t, "100.00", res.PatientShare)
	assertMoney(t, "900.00", res.PayerPayment)
	assertMoney(t, "5000.00", res.Patient.InNetwork.OOPMet)

	capStep, ok := findStep(res.Steps, "OOP Max Reached")
	require.True(t, ok)
	assertMoney(t, "-100.00", capStep.PatientOwes)
	assert.Equal(t, "Patient cost capped by Out-of-Pocket Maximum.", capStep.Notes)

	status, ok := findStep(res.Steps, "Benefit Status Change")
	require.True(t, ok)
	assert.Equal(t, "Individual OOP Max met on this line.", status.Notes)
}

func TestAdjudicateLine_OOPAlreadyMet(t *testing.T) {
	in := lineInput("1000", allowed("A", "1000"))
	in.Benefits.InNetwork.IndividualDeductible = usd("500")
	in.Patient.InNetwork.OOPMet = usd("5000")

	res := adjudication.AdjudicateLine(in)

	assertMoney(t, "0.00", res.PatientShare)
	assertMoney(t, "1000.00", res.PayerPayment)
	assertMoney(t, "5000.00", res.Patient.InNetwork.OOPMet)
}

func TestAdjudicateLine_NoOOPMaxConfigured(t *testing.T) {
	in := lineInput("1000", allowed("A", "1000"))
	in.Benefits.InNetwork.IndividualOOPMax = usd("0")

	res := adjudication.AdjudicateLine(in)

	assertMoney(t, "200.00", res.PatientShare, "a zero OOP maximum is treated as none configured")
	_, capped := findStep(res.Steps, "OOP Max Reached")
	assert.False(t, capped)
}

// =============================================================================
// PLAN SCOPE
// =============================================================================

func TestAdjudicateLine_EmbeddedFamily_LesserOfRooms(t *testing.T) {
	// GIVEN: $1000 individual deductible (none met), $2000 family with $1800 met
	// WHEN: adjudicating $500
	// THEN: only $200 (family room) goes to deductible, both scopes record it

	in := lineInput("500", allowed("A", "500"))
	in.Benefits.PlanScope = adjudication.ScopeEmbeddedFamily
	in.Benefits.InNetwork.IndividualDeductible = usd("1000")
	in.Benefits.InNetwork.FamilyDeductible = usd("2000")
	family := adjudication.Accumulators{}
	family.InNetwork.DeductibleMet = usd("1800")
	in.Family = &family

	res := adjudication.AdjudicateLine(in)

	// 200 deductible + 20% of 300
	assertMoney(t, "260.00", res.PatientShare)
	assertMoney(t, "200.00", res.Patient.InNetwork.DeductibleMet)
	require.NotNil(t, res.Family)
	assertMoney(t, "2000.00", res.Family.InNetwork.DeductibleMet)
	assertMoney(t, "260.00", res.Patient.InNetwork.OOPMet)
	assertMoney(t, "260.00", res.Family.InNetwork.OOPMet)
	assertMoney(t, "1800.00", family.InNetwork.DeductibleMet, "caller's family snapshot untouched")

	var notes []string
	for _, s := range res.Steps {
		if s.Description == "Benefit Status Change" {
			notes = append(notes, s.Notes)
		}
	}
	assert.Equal(t, []string{"Family Deductible met on this line."}, notes)
}

func TestAdjudicateLine_EmbeddedFamily_IndividualMetFirst(t *testing.T) {
	// Coinsurance starts once the individual deductible is met even though
	// the family deductible still has room.
	in := lineInput("1000", allowed("A", "1000"))
	in.Benefits.PlanScope = adjudication.ScopeEmbeddedFamily
	in.Benefits.InNetwork.IndividualDeductible = usd("500")
	in.Benefits.InNetwork.FamilyDeductible = usd("1500")
	in.Patient.InNetwork.DeductibleMet = usd("500")
	family := adjudication.Accumulators{}
	family.InNetwork.DeductibleMet = usd("700")
	in.Family = &family

	res := adjudication.AdjudicateLine(in)

	assertMoney(t, "200.00", res.PatientShare)
	assertMoney(t, "700.00", res.Family.InNetwork.DeductibleMet)
}

func TestAdjudicateLine_AggregateFamily_NeverWritesIndividual(t *testing.T) {
	in := lineInput("1000", allowed("A", "1000"))
	in.Benefits.PlanScope = adjudication.ScopeAggregateFamily
	in.Benefits.InNetwork.IndividualDeductible = usd("500")
	in.Benefits.InNetwork.FamilyDeductible = usd("1000")
	family := adjudication.Accumulators{}
	family.InNetwork.DeductibleMet = usd("400")
	in.Family = &family

	res := adjudication.AdjudicateLine(in)

	// 600 family room + 20% of 400
	assertMoney(t, "680.00", res.PatientShare)
	assert.Equal(t, in.Patient, res.Patient, "individual accumulators pass through unchanged")
	assertMoney(t, "1000.00", res.Family.InNetwork.DeductibleMet)
	assertMoney(t, "680.00", res.Family.InNetwork.OOPMet)
	_, ok := findStep(res.Steps, "Accumulator Update (Fam Deductible - INN)")
	assert.True(t, ok)
	_, ok = findStep(res.Steps, "Accumulator Update (Ind Deductible - INN)")
	assert.False(t, ok)
}

func TestAdjudicateLine_Individual_IgnoresFamily(t *testing.T) {
	in := lineInput("1000", allowed("A", "1000"))
	in.Benefits.InNetwork.IndividualDeductible = usd("300")
	in.Benefits.InNetwork.FamilyDeductible = usd("100")
	family := adjudication.Accumulators{}
	family.InNetwork.DeductibleMet = usd("100")
	in.Family = &family

	res := adjudication.AdjudicateLine(in)

	// The met family deductible does not limit an individual plan
	assertMoney(t, "300.00", res.Patient.InNetwork.DeductibleMet)
	assertMoney(t, "440.00", res.PatientShare)
	require.NotNil(t, res.Family)
	assert.Equal(t, family, *res.Family)
}

// =============================================================================
// COPAY-ONLY VARIANT & USAGE
// =============================================================================

func TestAdjudicateCopayOnly(t *testing.T) {
	benefit := allowed("A", "200")
	benefit.Copay = usd("25")
	in := lineInput("200", benefit)
	in.Benefits.CopayPolicy = adjudication.CopayOnlyIfPresent
	in.Benefits.InNetwork.IndividualDeductible = usd("1000")

	res, ok := adjudication.AdjudicateCopayOnly(in)

	require.True(t, ok)
	assertMoney(t, "25.00", res.PatientShare)
	assertMoney(t, "175.00", res.PayerPayment)
	assert.Equal(t, []string{"Copay Only", "Accumulator Update (Ind OOP - INN)"}, descriptions(res.Steps))
	assert.True(t, res.Patient.InNetwork.DeductibleMet.IsZero())
	assertMoney(t, "25.00", res.Patient.InNetwork.OOPMet)

	// Without a copay the standard waterfall applies
	in.Benefit.Copay = usd("0")
	_, ok = adjudication.AdjudicateCopayOnly(in)
	assert.False(t, ok)

	// Other policies never take this path
	in.Benefit.Copay = usd("25")
	in.Benefits.CopayPolicy = adjudication.CopayStandardWaterfall
	_, ok = adjudication.AdjudicateCopayOnly(in)
	assert.False(t, ok)
}

func TestAdjudicateCopayOnly_RespectsOOPCap(t *testing.T) {
	benefit := allowed("A", "200")
	benefit.Copay = usd("50")
	in := lineInput("200", benefit)
	in.Benefits.CopayPolicy = adjudication.CopayOnlyIfPresent
	in.Patient.InNetwork.OOPMet = usd("4980")

	res, ok := adjudication.AdjudicateCopayOnly(in)

	require.True(t, ok)
	assertMoney(t, "20.00", res.PatientShare)
	_, capped := findStep(res.Steps, "OOP Max Reached")
	assert.True(t, capped)
}

func TestAdjudicateLine_RecordsTherapyAndDMEUsage(t *testing.T) {
	in := lineInput("100", allowed("pt", "100"))
	in.Procedure.Category = "Physical"
	in.Procedure.Units = 2

	res := adjudication.AdjudicateLine(in)
	assert.Equal(t, 2, res.Patient.TherapyVisitsUsed.Physical)

	in = lineInput("150", allowed("dme", "150"))
	in.Procedure.Category = "DME"
	in.Patient.DMERentalPaid = usd("300")

	res = adjudication.AdjudicateLine(in)
	assertMoney(t, "450.00", res.Patient.DMERentalPaid)

	// A gated line (allowed 0) is not a covered visit
	in = lineInput("0", allowed("pt", "0"))
	in.Procedure.Category = "physical"
	res = adjudication.AdjudicateLine(in)
	assert.Equal(t, 0, res.Patient.TherapyVisitsUsed.Physical)
}

package adjudication_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/estimate-engine/adjudication"
	"github.com/warp/estimate-engine/money"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================
// Defaults mirror a plain commercial PPO: no deductible, 20% INN / 40% OON
// coinsurance, $5k/$10k INN and $10k/$20k OON out-of-pocket maximums.

var serviceDate = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func usd(s string) money.Money { return money.Parse(s) }

func pct(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

func assertMoney(t *testing.T, want string, got money.Money, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want, got.String(), msgAndArgs...)
}

func testMeta() adjudication.MetaData {
	return adjudication.MetaData{
		Patient:  adjudication.PatientInfo{Name: "John Doe", DOB: "1980-01-01", Relationship: "Self", Gender: "Male"},
		Practice: adjudication.PracticeInfo{Name: "Test Clinic", TaxID: "123456789"},
		Provider: adjudication.ProviderInfo{Name: "Dr. Smith", NPI: "1234567890", Phone: "555-555-5555"},
		Service:  adjudication.ServiceInfo{Date: serviceDate, PlaceOfService: "11"},
	}
}

func defaultBenefits() adjudication.Benefits {
	return adjudication.Benefits{
		PlanScope:            adjudication.ScopeIndividual,
		CopayPolicy:          adjudication.CopayStandardWaterfall,
		DeductibleAllocation: adjudication.AllocateHighestAllowedFirst,
		MPDSchedule:          adjudication.MPD100_50_50,
		InNetwork: adjudication.PlanLimits{
			IndividualOOPMax: usd("5000"),
			FamilyOOPMax:     usd("10000"),
			CoinsurancePct:   decimal.NewFromInt(20),
		},
		OutOfNetwork: adjudication.PlanLimits{
			IndividualOOPMax: usd("10000"),
			FamilyOOPMax:     usd("20000"),
			CoinsurancePct:   decimal.NewFromInt(40),
		},
	}
}

func officeVisit(id, billed string) adjudication.Procedure {
	return adjudication.Procedure{
		ID:            id,
		CPTCode:       "99214",
		BilledAmount:  usd(billed),
		Units:         1,
		Category:      "Office Visit",
		DateOfService: serviceDate,
		DxCode:        "R05",
	}
}

func procedure(id, category, billed string) adjudication.Procedure {
	p := officeVisit(id, billed)
	p.Category = category
	return p
}

func allowed(procID, amount string) adjudication.ProcedureBenefit {
	return adjudication.ProcedureBenefit{ProcedureID: procID, Allowed: usd(amount)}
}

func allowedWithCoins(procID, amount string, coins int64) adjudication.ProcedureBenefit {
	pb := allowed(procID, amount)
	pb.CoinsurancePct = pct(coins)
	return pb
}

func newPayer(id string, rank adjudication.Rank, network adjudication.Network, benefits ...adjudication.ProcedureBenefit) adjudication.Payer {
	return adjudication.Payer{
		ID:                id,
		Rank:              rank,
		Insurance:         adjudication.Insurance{Name: string(rank) + " Payer", MemberID: "123"},
		Network:           network,
		Category:          adjudication.CategoryCommercial,
		COBMethod:         adjudication.COBTraditional,
		Benefits:          defaultBenefits(),
		ProcedureBenefits: benefits,
	}
}

func estimate(payers []adjudication.Payer, procs ...adjudication.Procedure) *adjudication.Estimate {
	return adjudication.CalculateCombinedEstimate(adjudication.EstimateInput{
		Payers:     payers,
		Procedures: procs,
		MetaData:   testMeta(),
	})
}

// descriptions lists the step labels of a breakdown.
func descriptions(steps []adjudication.BreakdownStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Description
	}
	return out
}

// findStep returns the first step with the description.
func findStep(steps []adjudication.BreakdownStep, description string) (adjudication.BreakdownStep, bool) {
	for _, s := range steps {
		if s.Description == description {
			return s, true
		}
	}
	return adjudication.BreakdownStep{}, false
}

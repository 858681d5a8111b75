package factory

// =============================================================================
// BUILT-IN SCENARIOS
// =============================================================================
// Demo requests served by GET /api/scenarios and `estimator scenarios`.
// Every scenario bills on 2025-03-10 at POS 11 under NPI 1234567890.

// Scenario is a named, ready-to-run estimate request.
type Scenario struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Expected    string              `json:"expectedPatientResponsibility"`
	Request     EstimateRequestJSON `json:"request"`
}

// Scenarios returns the catalog. Each call builds fresh requests.
func Scenarios() []Scenario {
	return []Scenario{
		traditionalCOB(),
		nonDuplicationCOB(),
		carveOutCOB(),
		oonBalanceBill(),
		tplSubrogation(),
		embeddedFamilyDeductible(),
		surgicalSession(),
		therapyVisitLimit(),
	}
}

// FindScenario looks a scenario up by id.
func FindScenario(id string) (Scenario, bool) {
	for _, s := range Scenarios() {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

func traditionalCOB() Scenario {
	primary := demoPayer("payer1", "Primary", "in-network", coinsBenefit("proc1", "1000", "40"))
	secondary := demoPayer("payer2", "Secondary", "in-network", coinsBenefit("proc1", "1000", "20"))
	return Scenario{
		ID:          "traditional-cob",
		Name:        "Traditional COB",
		Description: "Primary pays 60%, the secondary picks up the remaining $400 up to its own normal benefit.",
		Expected:    "0.00",
		Request:     demoRequest([]PayerJSON{primary, secondary}, officeVisitJSON("proc1", "1000")),
	}
}

func nonDuplicationCOB() Scenario {
	primary := demoPayer("payer1", "Primary", "in-network", coinsBenefit("proc1", "1000", "20"))
	secondary := demoPayer("payer2", "Secondary", "in-network", coinsBenefit("proc1", "1000", "20"))
	secondary.COBMethod = "non_duplication"
	return Scenario{
		ID:          "non-duplication-cob",
		Name:        "Non-Duplication COB",
		Description: "Both plans would pay $800; the secondary pays only what exceeds the primary payment.",
		Expected:    "200.00",
		Request:     demoRequest([]PayerJSON{primary, secondary}, officeVisitJSON("proc1", "1000")),
	}
}

func carveOutCOB() Scenario {
	primary := demoPayer("payer1", "Primary", "in-network", ProcedureBenefitJSON{ProcedureID: "proc1", AllowedAmount: "1000"})
	primary.Benefits.InNetworkIndividualDeductible = "1000"

	secBenefit := coinsBenefit("proc1", "1000", "20")
	secBenefit.Copay = "50"
	secondary := demoPayer("payer2", "Secondary", "in-network", secBenefit)
	secondary.COBMethod = "carve_out"

	return Scenario{
		ID:          "carve-out-cob",
		Name:        "Carve-Out COB",
		Description: "The primary deductible absorbs the line; the secondary pays the patient share it would have left ($240).",
		Expected:    "760.00",
		Request:     demoRequest([]PayerJSON{primary, secondary}, officeVisitJSON("proc1", "1000")),
	}
}

func oonBalanceBill() Scenario {
	primary := demoPayer("payer1", "Primary", "out-of-network", coinsBenefit("proc1", "1000", "40"))
	secondary := demoPayer("payer2", "Secondary", "in-network", coinsBenefit("proc1", "1000", "20"))
	return Scenario{
		ID:          "oon-balance-bill",
		Name:        "Out-of-Network Balance Bill",
		Description: "An OON primary allows $1000 of $2000 billed. The $1000 gap stays with the patient and never reaches the secondary.",
		Expected:    "1000.00",
		Request:     demoRequest([]PayerJSON{primary, secondary}, officeVisitJSON("proc1", "2000")),
	}
}

func tplSubrogation() Scenario {
	primary := demoPayer("payer1", "Primary", "in-network", coinsBenefit("proc1", "1000", "20"))
	primary.PayerType = "auto"
	primary.SubrogationActive = true
	secondary := demoPayer("payer2", "Secondary", "in-network", ProcedureBenefitJSON{ProcedureID: "proc1", AllowedAmount: "1000"})
	return Scenario{
		ID:          "tpl-subrogation",
		Name:        "Third-Party Liability",
		Description: "An auto carrier with active subrogation is primary; the commercial secondary pays nothing.",
		Expected:    "200.00",
		Request:     demoRequest([]PayerJSON{primary, secondary}, officeVisitJSON("proc1", "1000")),
	}
}

func embeddedFamilyDeductible() Scenario {
	payer := demoPayer("payer1", "Primary", "in-network", ProcedureBenefitJSON{ProcedureID: "proc1", AllowedAmount: "1000"})
	payer.Benefits.PlanType = "EmbeddedFamily"
	payer.Benefits.InNetworkIndividualDeductible = "1500"
	payer.Benefits.InNetworkFamilyDeductible = "3000"
	payer.FamilyAccumulators = &AccumulatorsJSON{InNetworkDeductibleMet: "2800", InNetworkOOPMet: "2800"}
	return Scenario{
		ID:          "embedded-family-deductible",
		Name:        "Embedded Family Deductible",
		Description: "Only $200 of the family deductible is left, so the member pays $200 deductible plus 20% of $800.",
		Expected:    "360.00",
		Request:     demoRequest([]PayerJSON{payer}, officeVisitJSON("proc1", "1200")),
	}
}

func surgicalSession() Scenario {
	payer := demoPayer("payer1", "Primary", "in-network",
		ProcedureBenefitJSON{ProcedureID: "surg1", AllowedAmount: "2000"},
		ProcedureBenefitJSON{ProcedureID: "surg2", AllowedAmount: "1000"})
	payer.Benefits.MultiProcedureLogic = "100_50_50"

	surg1 := procedureJSON("surg1", "Surgery", "3000")
	surg1.CPTCode = "29881"
	surg2 := procedureJSON("surg2", "Surgery", "1500")
	surg2.CPTCode = "29877"
	return Scenario{
		ID:          "mpd-surgical-session",
		Name:        "Multiple-Procedure Discount",
		Description: "Two surgeries in one session: the second is allowed at 50%.",
		Expected:    "500.00",
		Request:     demoRequest([]PayerJSON{payer}, surg1, surg2),
	}
}

func therapyVisitLimit() Scenario {
	payer := demoPayer("payer1", "Primary", "in-network",
		ProcedureBenefitJSON{ProcedureID: "pt1", AllowedAmount: "120"},
		ProcedureBenefitJSON{ProcedureID: "pt2", AllowedAmount: "120"})
	payer.Benefits.TherapyVisitLimits.Physical = "20"
	payer.PatientAccumulators.TherapyVisitsUsed.Physical = "19"

	pt1 := procedureJSON("pt1", "physical", "150")
	pt1.CPTCode = "97110"
	pt2 := procedureJSON("pt2", "physical", "150")
	pt2.CPTCode = "97140"
	return Scenario{
		ID:          "therapy-visit-limit",
		Name:        "Therapy Visit Limit",
		Description: "19 of 20 physical therapy visits are used; the first line takes the last visit and the second is not covered.",
		Expected:    "24.00",
		Request:     demoRequest([]PayerJSON{payer}, pt1, pt2),
	}
}

// =============================================================================
// BUILDERS
// =============================================================================

func demoRequest(payers []PayerJSON, procs ...ProcedureJSON) EstimateRequestJSON {
	return EstimateRequestJSON{
		MetaData: MetaDataJSON{
			Patient:  PatientJSON{Name: "John Doe", DOB: "1980-01-01", Relationship: "Self", Gender: "Male"},
			Practice: PracticeJSON{Name: "Main Street Clinic", TaxID: "123456789"},
			Provider: ProviderJSON{Name: "Dr. Smith", NPI: "1234567890", Phone: "555-555-5555"},
			Service:  ServiceJSON{Date: "2025-03-10", PlaceOfService: "11"},
		},
		Payers:     payers,
		Procedures: procs,
	}
}

// demoPayer is a commercial PPO with no deductible, 20% INN / 40% OON
// coinsurance and $5k/$10k INN, $10k/$20k OON out-of-pocket maximums.
func demoPayer(id, rank, network string, benefits ...ProcedureBenefitJSON) PayerJSON {
	return PayerJSON{
		ID:            id,
		Rank:          rank,
		Insurance:     InsuranceJSON{Name: rank + " Payer", MemberID: "123"},
		NetworkStatus: network,
		PayerType:     "commercial",
		COBMethod:     "traditional",
		Benefits: BenefitsJSON{
			PlanType:                          "Individual",
			CopayLogic:                        "standard_waterfall",
			DeductibleAllocation:              "highest_allowed_first",
			MultiProcedureLogic:               "100_50_50",
			InNetworkIndividualDeductible:     "0",
			InNetworkIndividualOOPMax:         "5000",
			InNetworkFamilyDeductible:         "0",
			InNetworkFamilyOOPMax:             "10000",
			InNetworkCoinsurancePercentage:    "20",
			OutOfNetworkIndividualDeductible:  "0",
			OutOfNetworkIndividualOOPMax:      "10000",
			OutOfNetworkFamilyDeductible:      "0",
			OutOfNetworkFamilyOOPMax:          "20000",
			OutOfNetworkCoinsurancePercentage: "40",
		},
		ProcedureBenefits: benefits,
	}
}

func coinsBenefit(procID, allowed, coins string) ProcedureBenefitJSON {
	return ProcedureBenefitJSON{ProcedureID: procID, AllowedAmount: Text(allowed), CoinsurancePercentage: Text(coins)}
}

func officeVisitJSON(id, billed string) ProcedureJSON {
	return procedureJSON(id, "Office Visit", billed)
}

func procedureJSON(id, category, billed string) ProcedureJSON {
	return ProcedureJSON{
		ID:            id,
		CPTCode:       "99214",
		BilledAmount:  Text(billed),
		Units:         "1",
		Category:      category,
		DateOfService: "2025-03-10",
		DxCode:        "R05",
	}
}

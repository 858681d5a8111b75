/*
estimate.go - Build engine input from the estimate intake form

PURPOSE:
  The intake form sends every amount as text, exactly as typed. This file
  is the one place that text is parsed: after Build, the engine only sees
  money.Money, decimal percentages and closed enums.

JSON SCHEMA:
  {
    "metaData": {
      "patient":  {"name": "Jane Doe", "dob": "1980-01-01", "relationship": "Self", "gender": "Female"},
      "practice": {"name": "Main Street Clinic", "taxId": "123456789"},
      "provider": {"name": "Dr. Smith", "npi": "1234567890", "phone": "555-555-5555"},
      "service":  {"date": "2025-03-10", "placeOfService": "11"}
    },
    "payers": [{
      "id": "payer1",
      "rank": "Primary",                   // Primary | Secondary | Tertiary
      "insurance": {"name": "Aetna PPO", "memberId": "W123"},
      "networkStatus": "in-network",       // in-network | out-of-network
      "payerType": "commercial",           // commercial | medicare | medicaid | auto | workers_comp
      "subrogationActive": false,
      "cobMethod": "traditional",          // traditional | non_duplication | carve_out (+ aliases)
      "benefits": {
        "planType": "EmbeddedFamily",      // Individual | EmbeddedFamily | AggregateFamily
        "copayLogic": "standard_waterfall",
        "deductibleAllocation": "highest_allowed_first",
        "multiProcedureLogic": "100_50_50",
        "inNetworkIndividualDeductible": "1500",
        "inNetworkCoinsurancePercentage": "20",
        ...
        "therapyVisitLimits": {"physical": "20", "occupational": "", "speech": ""},
        "dmeRentalCap": {"applies": true, "purchasePrice": "1200"}
      },
      "patientAccumulators": {"inNetworkDeductibleMet": "250", ...},
      "familyAccumulators": null,
      "procedureBenefits": [{"procedureId": "proc1", "allowedAmount": "1000", "copay": "", "coinsurancePercentage": null}]
    }],
    "procedures": [{
      "id": "proc1", "cptCode": "99214", "billedAmount": "$1,000.00",
      "units": 1, "category": "Office Visit", "isPreventive": false,
      "dateOfService": "2025-03-10", "modifiers": "", "dxCode": "R05"
    }],
    "propensityData": {
      "paymentHistory": "on_time", "financialConfidence": "good",
      "outstandingBalance": "0", "employmentStatus": "employed",
      "householdIncome": "50k-100k", "householdSize": "3", "isHSACompatible": false
    }
  }

  Any numeric field may arrive as a JSON string or number. Blank or
  unparseable amounts are 0.

SEE ALSO:
  - scenarios.go: built-in requests
  - adjudication/types.go: the typed model produced here
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/estimate-engine/adjudication"
	"github.com/warp/estimate-engine/money"
	"github.com/warp/estimate-engine/propensity"
)

// MaxPayers is the longest coordination chain the form supports.
const MaxPayers = 3

// DateLayout is the form's date format.
const DateLayout = "2006-01-02"

// ErrInvalidRequest is returned when a request body cannot be turned into
// engine input.
var ErrInvalidRequest = errors.New("invalid estimate request")

// =============================================================================
// JSON TYPES
// =============================================================================

// Text is a form value. It accepts a JSON string, number, bool or null.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

func (t Text) String() string { return strings.TrimSpace(string(t)) }

// EstimateRequestJSON is the body of an estimate request.
type EstimateRequestJSON struct {
	MetaData       MetaDataJSON    `json:"metaData"`
	Payers         []PayerJSON     `json:"payers"`
	Procedures     []ProcedureJSON `json:"procedures"`
	PropensityData *PropensityJSON `json:"propensityData,omitempty"`
}

type MetaDataJSON struct {
	Patient  PatientJSON  `json:"patient"`
	Practice PracticeJSON `json:"practice"`
	Provider ProviderJSON `json:"provider"`
	Service  ServiceJSON  `json:"service"`
}

type PatientJSON struct {
	Name         string `json:"name"`
	DOB          string `json:"dob"`
	Relationship string `json:"relationship"`
	Gender       string `json:"gender"`
}

type PracticeJSON struct {
	Name  string `json:"name"`
	TaxID string `json:"taxId"`
}

type ProviderJSON struct {
	Name  string `json:"name"`
	NPI   string `json:"npi"`
	Phone string `json:"phone"`
}

type ServiceJSON struct {
	Date           string `json:"date"`
	PlaceOfService string `json:"placeOfService"`
}

type InsuranceJSON struct {
	Name     string `json:"name"`
	MemberID string `json:"memberId"`
}

type PayerJSON struct {
	ID                  string                 `json:"id"`
	Rank                string                 `json:"rank"`
	Insurance           InsuranceJSON          `json:"insurance"`
	NetworkStatus       string                 `json:"networkStatus"`
	PayerType           string                 `json:"payerType"`
	SubrogationActive   bool                   `json:"subrogationActive"`
	COBMethod           string                 `json:"cobMethod"`
	Benefits            BenefitsJSON           `json:"benefits"`
	PatientAccumulators AccumulatorsJSON       `json:"patientAccumulators"`
	FamilyAccumulators  *AccumulatorsJSON      `json:"familyAccumulators"`
	ProcedureBenefits   []ProcedureBenefitJSON `json:"procedureBenefits"`
}

type TherapyVisitsJSON struct {
	Physical     Text `json:"physical"`
	Occupational Text `json:"occupational"`
	Speech       Text `json:"speech"`
}

type BenefitsJSON struct {
	PlanType             string `json:"planType"`
	CopayLogic           string `json:"copayLogic"`
	DeductibleAllocation string `json:"deductibleAllocation"`
	MultiProcedureLogic  string `json:"multiProcedureLogic"`

	InNetworkIndividualDeductible  Text `json:"inNetworkIndividualDeductible"`
	InNetworkIndividualOOPMax      Text `json:"inNetworkIndividualOopMax"`
	InNetworkFamilyDeductible      Text `json:"inNetworkFamilyDeductible"`
	InNetworkFamilyOOPMax          Text `json:"inNetworkFamilyOopMax"`
	InNetworkCoinsurancePercentage Text `json:"inNetworkCoinsurancePercentage"`

	OutOfNetworkIndividualDeductible  Text `json:"outOfNetworkIndividualDeductible"`
	OutOfNetworkIndividualOOPMax      Text `json:"outOfNetworkIndividualOopMax"`
	OutOfNetworkFamilyDeductible      Text `json:"outOfNetworkFamilyDeductible"`
	OutOfNetworkFamilyOOPMax          Text `json:"outOfNetworkFamilyOopMax"`
	OutOfNetworkCoinsurancePercentage Text `json:"outOfNetworkCoinsurancePercentage"`

	TherapyVisitLimits TherapyVisitsJSON `json:"therapyVisitLimits"`
	DMERentalCap       DMERentalCapJSON  `json:"dmeRentalCap"`
}

type DMERentalCapJSON struct {
	Applies       bool `json:"applies"`
	PurchasePrice Text `json:"purchasePrice"`
}

type AccumulatorsJSON struct {
	InNetworkDeductibleMet    Text              `json:"inNetworkDeductibleMet"`
	InNetworkOOPMet           Text              `json:"inNetworkOopMet"`
	OutOfNetworkDeductibleMet Text              `json:"outOfNetworkDeductibleMet"`
	OutOfNetworkOOPMet        Text              `json:"outOfNetworkOopMet"`
	TherapyVisitsUsed         TherapyVisitsJSON `json:"therapyVisitsUsed"`
	DMERentalPaid             Text              `json:"dmeRentalPaid"`
}

type ProcedureBenefitJSON struct {
	ProcedureID   string `json:"procedureId"`
	AllowedAmount Text   `json:"allowedAmount"`
	Copay         Text   `json:"copay"`
	// Coinsurance is an override: blank means use the plan's percentage.
	CoinsurancePercentage Text `json:"coinsurancePercentage"`
}

type ProcedureJSON struct {
	ID            string `json:"id"`
	CPTCode       string `json:"cptCode"`
	BilledAmount  Text   `json:"billedAmount"`
	Modifiers     string `json:"modifiers"`
	DxCode        string `json:"dxCode"`
	Category      string `json:"category"`
	Units         Text   `json:"units"`
	IsPreventive  bool   `json:"isPreventive"`
	DateOfService string `json:"dateOfService"`
}

type PropensityJSON struct {
	PaymentHistory      string `json:"paymentHistory"`
	FinancialConfidence string `json:"financialConfidence"`
	OutstandingBalance  Text   `json:"outstandingBalance"`
	EmploymentStatus    string `json:"employmentStatus"`
	HouseholdIncome     string `json:"householdIncome"`
	HouseholdSize       Text   `json:"householdSize"`
	IsHSACompatible     bool   `json:"isHSACompatible"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseEstimateRequest decodes a request body.
func ParseEstimateRequest(data []byte) (EstimateRequestJSON, error) {
	var req EstimateRequestJSON
	if err := json.Unmarshal(data, &req); err != nil {
		return EstimateRequestJSON{}, fmt.Errorf("%w: failed to parse estimate JSON: %w", ErrInvalidRequest, err)
	}
	return req, nil
}

// ParseEstimate decodes a request body and builds engine input.
func ParseEstimate(data []byte) (adjudication.EstimateInput, error) {
	req, err := ParseEstimateRequest(data)
	if err != nil {
		return adjudication.EstimateInput{}, err
	}
	return Build(req)
}

// Build converts a request into engine input. Amounts never fail to parse;
// only the shape of the request can be rejected.
func Build(req EstimateRequestJSON) (adjudication.EstimateInput, error) {
	if err := validate(req); err != nil {
		return adjudication.EstimateInput{}, err
	}

	in := adjudication.EstimateInput{
		MetaData:   buildMetaData(req.MetaData),
		Payers:     make([]adjudication.Payer, 0, len(req.Payers)),
		Procedures: make([]adjudication.Procedure, 0, len(req.Procedures)),
	}
	for _, pj := range req.Payers {
		in.Payers = append(in.Payers, buildPayer(pj))
	}
	for _, pj := range req.Procedures {
		in.Procedures = append(in.Procedures, buildProcedure(pj))
	}
	if req.PropensityData != nil {
		p := buildPropensity(*req.PropensityData)
		if !p.Empty() {
			in.Propensity = p
		}
	}
	return in, nil
}

func validate(req EstimateRequestJSON) error {
	if len(req.Payers) > MaxPayers {
		return fmt.Errorf("%w: %d payers, at most %d are supported", ErrInvalidRequest, len(req.Payers), MaxPayers)
	}

	payerIDs := make(map[string]bool, len(req.Payers))
	for i, p := range req.Payers {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("%w: payer %d has no id", ErrInvalidRequest, i+1)
		}
		if payerIDs[id] {
			return fmt.Errorf("%w: duplicate payer id %q", ErrInvalidRequest, id)
		}
		payerIDs[id] = true
	}

	seen := make(map[string]bool, len(req.Procedures))
	for i, p := range req.Procedures {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return fmt.Errorf("%w: procedure %d has no id", ErrInvalidRequest, i+1)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate procedure id %q", ErrInvalidRequest, id)
		}
		seen[id] = true
	}
	return nil
}

func buildMetaData(mj MetaDataJSON) adjudication.MetaData {
	return adjudication.MetaData{
		Patient: adjudication.PatientInfo{
			Name:         mj.Patient.Name,
			DOB:          mj.Patient.DOB,
			Relationship: mj.Patient.Relationship,
			Gender:       mj.Patient.Gender,
		},
		Practice: adjudication.PracticeInfo{Name: mj.Practice.Name, TaxID: mj.Practice.TaxID},
		Provider: adjudication.ProviderInfo{
			Name:  mj.Provider.Name,
			NPI:   strings.TrimSpace(mj.Provider.NPI),
			Phone: mj.Provider.Phone,
		},
		Service: adjudication.ServiceInfo{
			Date:           parseDate(mj.Service.Date),
			PlaceOfService: strings.TrimSpace(mj.Service.PlaceOfService),
		},
	}
}

func buildPayer(pj PayerJSON) adjudication.Payer {
	p := adjudication.Payer{
		ID:                  strings.TrimSpace(pj.ID),
		Rank:                adjudication.ParseRank(pj.Rank),
		Insurance:           adjudication.Insurance{Name: pj.Insurance.Name, MemberID: pj.Insurance.MemberID},
		Network:             adjudication.ParseNetwork(pj.NetworkStatus),
		Category:            adjudication.ParsePayerCategory(pj.PayerType),
		COBMethod:           adjudication.ResolveCOBMethod(pj.COBMethod),
		SubrogationActive:   pj.SubrogationActive,
		Benefits:            buildBenefits(pj.Benefits),
		PatientAccumulators: buildAccumulators(pj.PatientAccumulators),
	}
	if pj.FamilyAccumulators != nil {
		fam := buildAccumulators(*pj.FamilyAccumulators)
		p.FamilyAccumulators = &fam
	}
	for _, bj := range pj.ProcedureBenefits {
		p.ProcedureBenefits = append(p.ProcedureBenefits, buildProcedureBenefit(bj))
	}
	return p
}

func buildBenefits(bj BenefitsJSON) adjudication.Benefits {
	return adjudication.Benefits{
		PlanScope:            adjudication.ParsePlanScope(bj.PlanType),
		CopayPolicy:          adjudication.ParseCopayPolicy(bj.CopayLogic),
		DeductibleAllocation: adjudication.ParseDeductibleAllocation(bj.DeductibleAllocation),
		MPDSchedule:          adjudication.ParseMPDSchedule(bj.MultiProcedureLogic),
		InNetwork: adjudication.PlanLimits{
			IndividualDeductible: parseMoney(bj.InNetworkIndividualDeductible),
			FamilyDeductible:     parseMoney(bj.InNetworkFamilyDeductible),
			IndividualOOPMax:     parseMoney(bj.InNetworkIndividualOOPMax),
			FamilyOOPMax:         parseMoney(bj.InNetworkFamilyOOPMax),
			CoinsurancePct:       parsePercent(bj.InNetworkCoinsurancePercentage),
		},
		OutOfNetwork: adjudication.PlanLimits{
			IndividualDeductible: parseMoney(bj.OutOfNetworkIndividualDeductible),
			FamilyDeductible:     parseMoney(bj.OutOfNetworkFamilyDeductible),
			IndividualOOPMax:     parseMoney(bj.OutOfNetworkIndividualOOPMax),
			FamilyOOPMax:         parseMoney(bj.OutOfNetworkFamilyOOPMax),
			CoinsurancePct:       parsePercent(bj.OutOfNetworkCoinsurancePercentage),
		},
		TherapyVisitLimits: parseVisits(bj.TherapyVisitLimits),
		DMERentalCap: adjudication.DMERentalCap{
			Applies:       bj.DMERentalCap.Applies,
			PurchasePrice: parseMoney(bj.DMERentalCap.PurchasePrice),
		},
	}
}

func buildAccumulators(aj AccumulatorsJSON) adjudication.Accumulators {
	return adjudication.Accumulators{
		InNetwork: adjudication.NetworkTotals{
			DeductibleMet: parseMoney(aj.InNetworkDeductibleMet),
			OOPMet:        parseMoney(aj.InNetworkOOPMet),
		},
		OutOfNetwork: adjudication.NetworkTotals{
			DeductibleMet: parseMoney(aj.OutOfNetworkDeductibleMet),
			OOPMet:        parseMoney(aj.OutOfNetworkOOPMet),
		},
		TherapyVisitsUsed: parseVisits(aj.TherapyVisitsUsed),
		DMERentalPaid:     parseMoney(aj.DMERentalPaid),
	}
}

func buildProcedureBenefit(bj ProcedureBenefitJSON) adjudication.ProcedureBenefit {
	pb := adjudication.ProcedureBenefit{
		ProcedureID: bj.ProcedureID,
		Allowed:     parseMoney(bj.AllowedAmount),
		Copay:       parseMoney(bj.Copay),
	}
	if d, ok := money.ParseDecimal(bj.CoinsurancePercentage.String()); ok {
		pb.CoinsurancePct = &d
	}
	return pb
}

func buildProcedure(pj ProcedureJSON) adjudication.Procedure {
	return adjudication.Procedure{
		ID:            strings.TrimSpace(pj.ID),
		CPTCode:       strings.TrimSpace(pj.CPTCode),
		BilledAmount:  parseMoney(pj.BilledAmount),
		Units:         parseCount(pj.Units),
		Category:      pj.Category,
		Preventive:    pj.IsPreventive,
		DateOfService: parseDate(pj.DateOfService),
		Modifiers:     pj.Modifiers,
		DxCode:        pj.DxCode,
	}
}

func buildPropensity(pj PropensityJSON) *propensity.Input {
	in := &propensity.Input{
		PaymentHistory:      propensity.PaymentHistory(normalize(pj.PaymentHistory)),
		FinancialConfidence: propensity.FinancialConfidence(normalize(pj.FinancialConfidence)),
		EmploymentStatus:    propensity.EmploymentStatus(normalize(pj.EmploymentStatus)),
		HouseholdIncome:     propensity.IncomeBand(normalize(pj.HouseholdIncome)),
		HouseholdSize:       parseCount(pj.HouseholdSize),
		HSACompatible:       pj.IsHSACompatible,
	}
	if pj.OutstandingBalance.String() != "" {
		bal := parseMoney(pj.OutstandingBalance)
		in.OutstandingBalance = &bal
	}
	return in
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseMoney(t Text) money.Money {
	return money.Parse(t.String())
}

func parsePercent(t Text) decimal.Decimal {
	d, _ := money.ParseDecimal(t.String())
	return d
}

// parseCount reads a whole count. Fractions are truncated, negatives are 0.
func parseCount(t Text) int {
	s := t.String()
	if n, err := strconv.Atoi(s); err == nil {
		return max(n, 0)
	}
	d, ok := money.ParseDecimal(s)
	if !ok || d.IsNegative() {
		return 0
	}
	return int(d.IntPart())
}

func parseVisits(vj TherapyVisitsJSON) adjudication.TherapyVisits {
	return adjudication.TherapyVisits{
		Physical:     parseCount(vj.Physical),
		Occupational: parseCount(vj.Occupational),
		Speech:       parseCount(vj.Speech),
	}
}

// parseDate returns the zero time for blank or malformed dates.
func parseDate(s string) time.Time {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return d
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

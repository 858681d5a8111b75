/*
estimate.go - CalculateCombinedEstimate, the payer-chain orchestrator

PURPOSE:
  Runs every payer in rank order over every procedure and carries the
  COB-eligible balance of each procedure from one payer to the next.

PER PAYER:
  1. Price allowed amounts (MPD) and compute the copay mask
  2. Order lines by the payer's deductible allocation policy
  3. Per line:
     a. claim = remaining balance (0 when blocked by TPL)
     b. coverage gate caps the allowed amount
     c. waterfall against the running accumulator snapshot
     d. non-primary: as-if-primary waterfall against the payer's ORIGINAL
        snapshot, then the COB method decides the actual payment
     e. primary: OON balance bill (non-COB) or INN contractual write-off
  4. Per-payer totals

RESULT:
  total patient responsibility = sum(final remaining balances)
                               + sum(non-COB liabilities)

SEE ALSO:
  - waterfall.go, cob.go, pricing.go, gate.go, copay.go
*/
package adjudication

import (
	"fmt"
	"sort"

	"github.com/warp/estimate-engine/money"
	"github.com/warp/estimate-engine/propensity"
)

// procedureState follows one procedure down the chain.
type procedureState struct {
	billed      money.Money
	paid        money.Money
	remaining   money.Money
	lastAllowed money.Money
}

// chainRun is the working state of one CalculateCombinedEstimate call.
type chainRun struct {
	procs  []Procedure
	meta   MetaData
	payers []Payer
	states []procedureState
	nonCOB map[string]money.Money
}

// CalculateCombinedEstimate is the engine entry point. It never fails: an
// empty payer list leaves every billed amount with the patient, and an
// empty procedure list yields a zero estimate.
func CalculateCombinedEstimate(in EstimateInput) *Estimate {
	run := &chainRun{
		procs:  append([]Procedure(nil), in.Procedures...),
		meta:   in.MetaData,
		payers: SortPayers(in.Payers),
		states: make([]procedureState, len(in.Procedures)),
		nonCOB: make(map[string]money.Money),
	}
	for i, proc := range run.procs {
		billed := proc.BilledAmount.NonNegative()
		run.states[i] = procedureState{billed: billed, remaining: billed}
	}

	chain := make([]PayerAdjudication, 0, len(run.payers))
	for i := range run.payers {
		chain = append(chain, run.adjudicatePayer(i))
	}

	summaries := make([]ProcedureSummary, len(run.procs))
	total := money.Zero
	for i, proc := range run.procs {
		st := run.states[i]
		summaries[i] = ProcedureSummary{
			ProcedureID:      proc.ID,
			Billed:           st.billed,
			TotalPayerPaid:   st.paid,
			RemainingBalance: st.remaining,
			NonCOBLiability:  run.nonCOB[proc.ID],
		}
		total = total.Add(st.remaining)
	}
	for _, id := range sortedKeys(run.nonCOB) {
		total = total.Add(run.nonCOB[id])
	}
	total = total.NonNegative()

	return &Estimate{
		MetaData:                   in.MetaData,
		Payers:                     run.payers,
		Procedures:                 run.procs,
		TotalPatientResponsibility: total,
		Chain:                      chain,
		NonCOBLiability:            run.nonCOB,
		ProcedureSummaries:         summaries,
		Propensity:                 propensity.Score(total, in.Propensity),
	}
}

// SortPayers returns a copy ordered Primary, Secondary, Tertiary. Payers
// sharing a rank keep their input order.
func SortPayers(payers []Payer) []Payer {
	sorted := append([]Payer(nil), payers...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Rank.Order() < sorted[b].Rank.Order()
	})
	return sorted
}

// =============================================================================
// PER PAYER
// =============================================================================

func (r *chainRun) adjudicatePayer(i int) PayerAdjudication {
	payer := r.payers[i]
	primary := i == 0
	priced := PriceAllowed(payer, r.procs, r.meta)
	mask := CopayMask(r.procs, payer)
	order := ProcessingOrder(payer.Benefits.DeductibleAllocation, priced)
	blocked := !primary && TPLBlocks(r.payers[i-1], payer)

	running := payer.PatientAccumulators
	runningFamily := familyStart(payer)

	block := PayerAdjudication{Payer: payer, Procedures: make([]AdjudicatedProcedure, len(r.procs))}
	for pos, idx := range order {
		proc := r.procs[idx]
		st := &r.states[idx]

		claim := st.remaining.NonNegative()
		if blocked {
			claim = money.Zero
		}
		if !claim.IsPositive() {
			block.Procedures[idx] = noBalanceRow(proc, *st, pos, blocked, r.payers[max(i-1, 0)])
			continue
		}

		gate := EvaluateCoverageGate(proc, payer.Benefits, running)
		allowed := gate.Apply(priced[idx].Allowed)
		line := LineInput{
			Procedure:      proc,
			Benefits:       payer.Benefits,
			Benefit:        benefitPtr(payer, proc.ID),
			Patient:        running,
			Family:         runningFamily,
			Allowed:        allowed,
			Network:        payer.Network,
			CopayPermitted: mask[idx],
		}
		res := adjudicate(line)

		steps := append([]BreakdownStep(nil), gate.Steps...)
		for _, note := range priced[idx].Notes {
			steps = append(steps, BreakdownStep{Description: "Pricing Adjustment", PatientOwes: money.Zero, Notes: note})
		}
		steps = append(steps, res.Steps...)

		payment, share := res.PayerPayment, res.PatientShare
		if !primary {
			asIfLine := line
			asIfLine.Patient = payer.PatientAccumulators
			asIfLine.Family = familyStart(payer)
			asIf := adjudicate(asIfLine)

			cob := COBInput{
				AsIfPayerPayment: asIf.PayerPayment,
				AsIfPatientShare: asIf.PatientShare,
				AsIfAllowed:      allowed,
				PriorPaid:        st.paid,
				ClaimAmount:      claim,
			}
			method := ResolveCOBMethod(string(payer.COBMethod))
			payment = ResolveCOBPayment(method, cob)
			share = claim.Sub(payment)
			steps = append(steps, cobStep(method, cob, payment))
		}

		st.paid = st.paid.Add(payment)
		st.lastAllowed = allowed
		if primary {
			gap := st.billed.Sub(allowed).NonNegative()
			if payer.Network == OutOfNetwork {
				if gap.IsPositive() {
					steps = append(steps, BreakdownStep{Description: "OON Balance Bill", PatientOwes: gap, Notes: "Non-COB eligible"})
					r.nonCOB[proc.ID] = r.nonCOB[proc.ID].Add(gap)
				}
			} else if gap.IsPositive() {
				steps = append(steps, BreakdownStep{
					Description: "Write-Off",
					PatientOwes: money.Zero,
					Notes:       fmt.Sprintf("Contractual write-off %s", gap.Format()),
				})
			}
			st.remaining = share
		} else {
			st.remaining = st.remaining.Sub(payment).NonNegative()
		}

		running, runningFamily = res.Patient, res.Family

		block.Procedures[idx] = AdjudicatedProcedure{
			ProcedureID:       proc.ID,
			CPTCode:           proc.CPTCode,
			OriginalBilled:    st.billed,
			FinalAllowed:      allowed,
			PatientCostShare:  share,
			PayerPayment:      payment,
			BalanceAfterPayer: st.remaining,
			ProcessingOrder:   pos + 1,
			Breakdown:         steps,
		}
		block.TotalPayerPayment = block.TotalPayerPayment.Add(payment)
		block.TotalPatientShare = block.TotalPatientShare.Add(share)
	}

	for _, st := range r.states {
		block.TotalRemainingBalance = block.TotalRemainingBalance.Add(st.remaining)
	}
	return block
}

// familyStart is the payer's family snapshot at the start of the chain. A
// family-scoped plan without one starts from nothing met so the family totals
// still thread from line to line.
func familyStart(payer Payer) *Accumulators {
	if payer.FamilyAccumulators == nil && payer.Benefits.PlanScope.tracksFamily() {
		return &Accumulators{}
	}
	return copyFamily(payer.FamilyAccumulators)
}

// adjudicate applies the copay-only variant where it fits, else the
// standard waterfall.
func adjudicate(in LineInput) LineResult {
	if res, ok := AdjudicateCopayOnly(in); ok {
		return res
	}
	return AdjudicateLine(in)
}

func noBalanceRow(proc Procedure, st procedureState, pos int, blocked bool, prior Payer) AdjudicatedProcedure {
	notes := ""
	if blocked {
		notes = fmt.Sprintf("Blocked by third-party liability: prior %s payer has subrogation active.", prior.Category)
	}
	return AdjudicatedProcedure{
		ProcedureID:       proc.ID,
		CPTCode:           proc.CPTCode,
		OriginalBilled:    st.billed,
		FinalAllowed:      st.lastAllowed,
		PatientCostShare:  money.Zero,
		PayerPayment:      money.Zero,
		BalanceAfterPayer: st.remaining,
		ProcessingOrder:   pos + 1,
		Breakdown: []BreakdownStep{{
			Description: "No remaining COB-eligible balance",
			PatientOwes: money.Zero,
			Notes:       notes,
		}},
	}
}

func cobStep(method COBMethod, in COBInput, payment money.Money) BreakdownStep {
	return BreakdownStep{
		Description: "COB Payment",
		PatientOwes: money.Zero,
		Notes: fmt.Sprintf("%s: as-if payment %s, as-if patient share %s, prior paid %s, claim %s; pays %s.",
			method, in.AsIfPayerPayment.Format(), in.AsIfPatientShare.Format(),
			in.PriorPaid.Format(), in.ClaimAmount.Format(), payment.Format()),
	}
}

func benefitPtr(payer Payer, procedureID string) *ProcedureBenefit {
	pb, ok := payer.BenefitFor(procedureID)
	if !ok {
		return nil
	}
	return &pb
}

func sortedKeys(m map[string]money.Money) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

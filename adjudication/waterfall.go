/*
waterfall.go - Cost-share waterfall for one line against one payer

PURPOSE:
  Splits a line's final allowed amount into patient cost share and payer
  payment, in a fixed order:

    1. Copay        (waived if preventive, only where the copay mask allows)
    2. Deductible   (waived if preventive, room by plan scope)
    3. Coinsurance  (waived if preventive, pct of what is left)
    4. OOP cap      (on the sum of 1-3, room by plan scope)

  Steps 2 and 3 stop once the remaining allowed amount reaches zero.

CONTRACT:
  AdjudicateLine is pure. It takes accumulators by value and returns new
  snapshots; the caller decides whether to keep them (running snapshot) or
  throw them away (as-if-primary simulation for COB).

SEE ALSO:
  - accumulators.go: room arithmetic shared by steps 2 and 4
  - estimate.go: threads the returned snapshots between lines
*/
package adjudication

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/estimate-engine/money"
)

// LineInput is everything the waterfall reads for one line.
type LineInput struct {
	Procedure Procedure
	Benefits  Benefits

	// Benefit is the payer override for the line; nil means none on file.
	Benefit *ProcedureBenefit

	Patient Accumulators
	Family  *Accumulators

	// Allowed is the final allowed amount after pricing and the coverage gate.
	Allowed money.Money
	Network Network

	// CopayPermitted is the copay mask decision for this line.
	CopayPermitted bool
}

// LineResult is the outcome of one line.
type LineResult struct {
	PatientShare money.Money
	PayerPayment money.Money
	Steps        []BreakdownStep
	Patient      Accumulators
	Family       *Accumulators
}

var hundred = decimal.NewFromInt(100)

// line carries the working state of one waterfall run.
type line struct {
	in        LineInput
	limits    PlanLimits
	remaining money.Money
	owed      money.Money
	steps     []BreakdownStep
	patient   Accumulators
	family    *Accumulators
}

func newLine(in LineInput) *line {
	return &line{
		in:        in,
		limits:    in.Benefits.Limits(in.Network),
		remaining: in.Allowed.NonNegative(),
		patient:   in.Patient,
		family:    copyFamily(in.Family),
	}
}

func (l *line) step(description string, owes money.Money, notes string) {
	l.steps = append(l.steps, BreakdownStep{Description: description, PatientOwes: owes, Notes: notes})
}

func (l *line) copay() money.Money {
	if l.in.Benefit == nil {
		return money.Zero
	}
	return l.in.Benefit.Copay.NonNegative()
}

// AdjudicateLine runs the standard waterfall.
func AdjudicateLine(in LineInput) LineResult {
	l := newLine(in)
	preventive := in.Procedure.Preventive

	l.applyCopay(preventive)
	if l.remaining.IsPositive() && !preventive {
		l.applyDeductible()
	}
	if l.remaining.IsPositive() && !preventive {
		l.applyCoinsurance()
	}
	l.applyOOPCap()
	return l.result()
}

// AdjudicateCopayOnly runs the copay_only_if_present variant: when the
// line has a copay, that copay is the whole patient liability, subject only
// to the OOP cap. ok is false when the variant does not apply and the
// standard waterfall should be used instead.
func AdjudicateCopayOnly(in LineInput) (LineResult, bool) {
	if in.Benefits.CopayPolicy != CopayOnlyIfPresent || !in.CopayPermitted || in.Procedure.Preventive {
		return LineResult{}, false
	}
	l := newLine(in)
	cp := l.copay()
	if !cp.IsPositive() {
		return LineResult{}, false
	}

	share := money.Min(cp, l.remaining)
	l.owed = share
	l.remaining = l.remaining.Sub(share)
	l.step("Copay Only", share, "Plan has a 'Copay Only' rule for this service.")
	l.applyOOPCap()
	return l.result(), true
}

func (l *line) result() LineResult {
	l.recordUsage()
	share := l.owed.NonNegative()
	return LineResult{
		PatientShare: share,
		PayerPayment: l.in.Allowed.NonNegative().Sub(share).NonNegative(),
		Steps:        l.steps,
		Patient:      l.patient,
		Family:       l.family,
	}
}

// =============================================================================
// STEPS
// =============================================================================

func (l *line) applyCopay(preventive bool) {
	if preventive {
		l.step("Copay", money.Zero, "Preventive service, copay waived.")
		return
	}
	cp := l.copay()
	if !cp.IsPositive() {
		return
	}
	if !l.in.CopayPermitted {
		l.step("Copay", money.Zero, fmt.Sprintf("Copay not applied to this line under %s policy.", l.in.Benefits.CopayPolicy))
		return
	}
	applied := money.Min(cp, l.remaining)
	l.owed = l.owed.Add(applied)
	l.remaining = l.remaining.Sub(applied)
	l.step("Copay", applied, fmt.Sprintf("Plan copay of %s applied.", cp.Format()))
}

func (l *line) applyDeductible() {
	rooms := roomsFor(limitDeductible, l.in.Benefits.PlanScope, l.limits, l.in.Network, l.patient, l.family)
	applied := rooms.line.take(l.remaining)
	if !applied.IsPositive() {
		return
	}
	l.owed = l.owed.Add(applied)
	l.remaining = l.remaining.Sub(applied)
	l.step("Deductible", applied, fmt.Sprintf("Applied to %s deductible.", l.in.Benefits.PlanScope))
	l.commit(limitDeductible, applied, rooms)
}

func (l *line) applyCoinsurance() {
	pct := l.limits.CoinsurancePct
	if l.in.Benefit != nil && l.in.Benefit.CoinsurancePct != nil {
		pct = *l.in.Benefit.CoinsurancePct
	}
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	coins := l.remaining.Percent(pct)
	l.owed = l.owed.Add(coins)
	l.step("Coinsurance", coins, fmt.Sprintf("%s%% of remaining %s.", pct.String(), l.remaining.Format()))
}

func (l *line) applyOOPCap() {
	if !l.owed.IsPositive() {
		return
	}
	rooms := roomsFor(limitOOP, l.in.Benefits.PlanScope, l.limits, l.in.Network, l.patient, l.family)
	within := rooms.line.take(l.owed)
	if over := l.owed.Sub(within); over.IsPositive() {
		l.step("OOP Max Reached", over.Neg(), "Patient cost capped by Out-of-Pocket Maximum.")
	}
	l.owed = within
	l.commit(limitOOP, within, rooms)
}

// commit records the applied amount against each tracked scope, emitting
// status-change steps for limits met on this line and one audit step per
// accumulator written.
func (l *line) commit(kind limitKind, applied money.Money, rooms scopeRooms) {
	scope := l.in.Benefits.PlanScope
	var indDelta, famDelta money.Money
	if scope.tracksIndividual() {
		indDelta = rooms.individual.take(applied)
	}
	if scope.tracksFamily() {
		famDelta = rooms.family.take(applied)
	}

	if scope.tracksIndividual() && rooms.individual.filledBy(indDelta) {
		l.step("Benefit Status Change", money.Zero, fmt.Sprintf("Individual %s met on this line.", kind.statusLabel()))
	}
	if scope.tracksFamily() && rooms.family.filledBy(famDelta) {
		l.step("Benefit Status Change", money.Zero, fmt.Sprintf("Family %s met on this line.", kind.statusLabel()))
	}

	indPlan, famPlan := kind.plan(l.limits)
	n := l.in.Network
	if scope.tracksIndividual() && indDelta.IsPositive() {
		var oldVal, newVal money.Money
		l.patient, oldVal, newVal = bump(kind, l.patient, n, indDelta, indPlan)
		l.accumulatorStep("Ind", kind, oldVal, indDelta, newVal)
	}
	if scope.tracksFamily() && famDelta.IsPositive() && l.family != nil {
		updated, oldVal, newVal := bump(kind, *l.family, n, famDelta, famPlan)
		l.family = &updated
		l.accumulatorStep("Fam", kind, oldVal, famDelta, newVal)
	}
}

func (l *line) accumulatorStep(who string, kind limitKind, oldVal, applied, newVal money.Money) {
	l.step(
		fmt.Sprintf("Accumulator Update (%s %s - %s)", who, kind.accumulatorLabel(), l.in.Network.Tag()),
		money.Zero,
		fmt.Sprintf("Old: %s, Applied: %s, New: %s", oldVal.Format(), applied.Format(), newVal.Format()),
	)
}

// bump adds delta to one met total, never past the plan amount.
func bump(kind limitKind, acc Accumulators, n Network, delta, plan money.Money) (Accumulators, money.Money, money.Money) {
	totals := acc.Totals(n)
	oldVal := kind.met(totals)
	newVal := limitCap(plan, oldVal.Add(delta))
	return acc.WithTotals(n, kind.withMet(totals, newVal)), oldVal, newVal
}

// recordUsage counts a covered therapy visit or DME rental on the patient
// snapshot so later lines for the same payer see it at the coverage gate.
// DME rentals count their allowed amount, the figure the gate caps at the
// purchase price.
func (l *line) recordUsage() {
	allowed := l.in.Allowed.NonNegative()
	if !allowed.IsPositive() {
		return
	}
	if d, ok := therapyDiscipline(l.in.Procedure.Category); ok {
		l.patient = l.patient.WithTherapyVisit(d, l.in.Procedure.BilledUnits())
	}
	if isDME(l.in.Procedure.Category) {
		l.patient = l.patient.WithDMERental(allowed)
	}
}

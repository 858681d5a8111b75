/*
accumulators.go - Deductible and OOP running totals, and limit room

PURPOSE:
  Accumulators record how much of a plan limit has already been met. They
  are plain values: copying one is a full snapshot, and every update
  method returns a new value. The orchestrator threads the latest snapshot
  from one line to the next for the same payer.

ROOM:
  Room is what is left of a limit: max(0, plan - met). A limit can also be
  unbounded (no family tracking, no OOP maximum configured).

  Individual:      line room = individual room
  AggregateFamily: line room = family room
  EmbeddedFamily:  line room = min(individual room, family room)

  Deltas are recorded per scope, each capped at its own room, so the
  individual and family accumulators commit independently.

SEE ALSO:
  - waterfall.go: the only writer of deductible/OOP totals
*/
package adjudication

import (
	"github.com/warp/estimate-engine/money"
)

// =============================================================================
// ACCUMULATORS
// =============================================================================

// NetworkTotals is what has been met for one network status.
type NetworkTotals struct {
	DeductibleMet money.Money `json:"deductibleMet"`
	OOPMet        money.Money `json:"oopMet"`
}

// Accumulators is a patient-level or family-level snapshot.
type Accumulators struct {
	InNetwork         NetworkTotals `json:"inNetwork"`
	OutOfNetwork      NetworkTotals `json:"outOfNetwork"`
	TherapyVisitsUsed TherapyVisits `json:"therapyVisitsUsed"`
	DMERentalPaid     money.Money   `json:"dmeRentalPaid"`
}

func (a Accumulators) Totals(n Network) NetworkTotals {
	if n == OutOfNetwork {
		return a.OutOfNetwork
	}
	return a.InNetwork
}

// WithTotals returns a copy with one network's totals replaced.
func (a Accumulators) WithTotals(n Network, t NetworkTotals) Accumulators {
	if n == OutOfNetwork {
		a.OutOfNetwork = t
	} else {
		a.InNetwork = t
	}
	return a
}

// WithTherapyVisit returns a copy with visits added for a discipline.
func (a Accumulators) WithTherapyVisit(d TherapyDiscipline, visits int) Accumulators {
	a.TherapyVisitsUsed = a.TherapyVisitsUsed.With(d, a.TherapyVisitsUsed.Get(d)+visits)
	return a
}

// WithDMERental returns a copy with a rental payment added.
func (a Accumulators) WithDMERental(paid money.Money) Accumulators {
	a.DMERentalPaid = a.DMERentalPaid.Add(paid)
	return a
}

// copyFamily detaches a family snapshot from the caller's pointer.
func copyFamily(f *Accumulators) *Accumulators {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// =============================================================================
// LIMITS - Deductible and OOP share the same room arithmetic
// =============================================================================

type limitKind int

const (
	limitDeductible limitKind = iota
	limitOOP
)

func (k limitKind) met(t NetworkTotals) money.Money {
	if k == limitOOP {
		return t.OOPMet
	}
	return t.DeductibleMet
}

func (k limitKind) withMet(t NetworkTotals, v money.Money) NetworkTotals {
	if k == limitOOP {
		t.OOPMet = v
	} else {
		t.DeductibleMet = v
	}
	return t
}

func (k limitKind) plan(l PlanLimits) (individual, family money.Money) {
	if k == limitOOP {
		return l.IndividualOOPMax, l.FamilyOOPMax
	}
	return l.IndividualDeductible, l.FamilyDeductible
}

// zeroIsUnlimited: a zero deductible means nothing is owed toward it, a zero
// OOP maximum means no maximum was configured.
func (k limitKind) zeroIsUnlimited() bool { return k == limitOOP }

// statusLabel names the limit in "Benefit Status Change" notes.
func (k limitKind) statusLabel() string {
	if k == limitOOP {
		return "OOP Max"
	}
	return "Deductible"
}

// accumulatorLabel names the limit in "Accumulator Update" steps.
func (k limitKind) accumulatorLabel() string {
	if k == limitOOP {
		return "OOP"
	}
	return "Deductible"
}

// room is remaining headroom under a limit.
type room struct {
	amount  money.Money
	bounded bool
}

var unlimited = room{}

func roomUnder(plan, met money.Money, zeroIsUnlimited bool) room {
	if zeroIsUnlimited && plan.IsZero() {
		return unlimited
	}
	return room{amount: plan.Sub(met).NonNegative(), bounded: true}
}

func (r room) min(o room) room {
	if !r.bounded {
		return o
	}
	if !o.bounded {
		return r
	}
	return room{amount: money.Min(r.amount, o.amount), bounded: true}
}

// take caps m at the room.
func (r room) take(m money.Money) money.Money {
	if !r.bounded {
		return m
	}
	return money.Min(m, r.amount)
}

// filledBy reports whether applying delta meets the limit.
func (r room) filledBy(delta money.Money) bool {
	return r.bounded && delta.IsPositive() && delta.GreaterThanOrEqual(r.amount)
}

// scopeRooms is the individual, family and per-line room for one limit.
type scopeRooms struct {
	individual room
	family     room
	line       room
}

// roomsFor resolves room by plan scope. Family room is only bounded when a
// family snapshot exists (AggregateFamily treats a missing one as nothing met).
func roomsFor(kind limitKind, scope PlanScope, limits PlanLimits, n Network, patient Accumulators, family *Accumulators) scopeRooms {
	indPlan, famPlan := kind.plan(limits)
	ind := roomUnder(indPlan, kind.met(patient.Totals(n)), kind.zeroIsUnlimited())

	switch scope {
	case ScopeAggregateFamily:
		famMet := money.Zero
		if family != nil {
			famMet = kind.met(family.Totals(n))
		}
		fam := roomUnder(famPlan, famMet, kind.zeroIsUnlimited())
		return scopeRooms{individual: unlimited, family: fam, line: fam}
	case ScopeEmbeddedFamily:
		fam := unlimited
		if family != nil && famPlan.IsPositive() {
			fam = roomUnder(famPlan, kind.met(family.Totals(n)), false)
		}
		return scopeRooms{individual: ind, family: fam, line: ind.min(fam)}
	default:
		return scopeRooms{individual: ind, family: unlimited, line: ind}
	}
}

// limitCap bounds a new accumulator value; a zero plan amount is uncapped.
func limitCap(plan, value money.Money) money.Money {
	if plan.IsZero() {
		return value
	}
	return money.Min(value, plan)
}

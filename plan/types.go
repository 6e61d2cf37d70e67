/*
Package plan provides the payment plan scheduling and settlement engine.

PURPOSE:
  A payment plan breaks one obligation (a venue, a photographer, a caterer)
  into dated installments. This package expands a plan configuration into a
  schedule, records payments against installments, and keeps the total
  owed consistent when someone pays more or less than is due.

KEY CONCEPTS IN THIS FILE (types.go):
  - PlanConfiguration: Immutable description of how to generate installments
  - Installment: One dated obligation within a plan
  - Plan: Ordered collection of installments, the unit of settlement
  - SettlementResult: The full set of changes a payment produces

CONSERVATION:
  For every plan, sum(DueAmount of unpaid) + sum(AmountPaid of paid) only
  changes when an overpayment cannot be absorbed. That leftover is reported
  as UnappliedExcess and never becomes a negative obligation.

USAGE:
  cfg := plan.PlanConfiguration{
      Kind:             plan.KindMonthlyRecurring,
      TotalAmount:      decimal.NewFromInt(1200),
      StartDate:        plan.NewDate(2025, time.March, 1),
      PerPaymentAmount: decimal.NewFromInt(500),
  }
  installments, err := plan.Generate(cfg)

SEE ALSO:
  - schedule.go: Schedule generation
  - settlement.go: Payment reconciliation
  - state.go: Paid/unpaid transitions
  - summary.go: Read-only rollups
*/
package plan

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type InstallmentID string

// =============================================================================
// PLAN CONFIGURATION
// =============================================================================

type PlanKind string

const (
	KindIndividual       PlanKind = "individual"
	KindMonthlyRecurring PlanKind = "monthly_recurring"
	KindFixedInterval    PlanKind = "fixed_interval"
	KindCyclical         PlanKind = "cyclical"
)

func (k PlanKind) IsValid() bool {
	switch k {
	case KindIndividual, KindMonthlyRecurring, KindFixedInterval, KindCyclical:
		return true
	}
	return false
}

type InstallmentKind string

const (
	InstallmentRegular  InstallmentKind = "regular"
	InstallmentDeposit  InstallmentKind = "deposit"
	InstallmentRetainer InstallmentKind = "retainer"
)

func (k InstallmentKind) IsValid() bool {
	switch k {
	case InstallmentRegular, InstallmentDeposit, InstallmentRetainer:
		return true
	}
	return false
}

// PlanConfiguration describes how a plan's installments are generated.
// Only the fields relevant to Kind are read.
type PlanConfiguration struct {
	Kind        PlanKind
	TotalAmount decimal.Decimal
	StartDate   Date

	// MonthlyRecurring and FixedInterval
	PerPaymentAmount decimal.Decimal

	// FixedInterval
	IntervalMonths int

	// Cyclical: amounts repeat from the start once exhausted
	CyclePattern []decimal.Decimal

	// Tag for the first generated installment. Empty means Regular.
	FirstInstallmentKind InstallmentKind
}

// =============================================================================
// INSTALLMENT
// =============================================================================

// CarryoverNote marks installments synthesized from an underpayment.
const CarryoverNote = "Carryover from partial payment"

type Installment struct {
	ID          InstallmentID
	Order       int // 1-based, stable once created
	TotalInPlan int // "N of M"; grows when carryover is added
	DueDate     Date
	DueAmount   decimal.Decimal
	AmountPaid  decimal.Decimal
	Paid        bool
	PaidAt      *time.Time
	Kind        InstallmentKind
	Notes       string
}

// IsCarryover reports whether the installment was created by an underpayment.
func (i Installment) IsCarryover() bool { return i.Notes == CarryoverNote }

// IsOverdue reports whether the installment is unpaid and due before today.
func (i Installment) IsOverdue(today Date) bool {
	return !i.Paid && i.DueDate.Before(today)
}

// =============================================================================
// PLAN - exclusive owner of its installments
// =============================================================================

type Plan struct {
	ID           PlanID
	Name         string
	Config       PlanConfiguration
	Installments []Installment
	CreatedAt    time.Time
}

// Installment returns the installment with the given id.
func (p *Plan) Installment(id InstallmentID) (Installment, bool) {
	for _, inst := range p.Installments {
		if inst.ID == id {
			return inst, true
		}
	}
	return Installment{}, false
}

// Unpaid returns the unpaid installments in chronological order.
func (p *Plan) Unpaid() []Installment {
	var out []Installment
	for _, inst := range p.Installments {
		if !inst.Paid {
			out = append(out, inst)
		}
	}
	return out
}

// Outstanding is sum(DueAmount of unpaid) + sum(AmountPaid of paid).
func (p *Plan) Outstanding() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range p.Installments {
		if inst.Paid {
			total = total.Add(inst.AmountPaid)
		} else {
			total = total.Add(inst.DueAmount)
		}
	}
	return total
}

// highWater is the largest Order or TotalInPlan seen on the plan. Deleted
// installments keep counting: their order numbers are never handed out again.
func (p *Plan) highWater() int {
	hw := 0
	for _, inst := range p.Installments {
		hw = max(hw, inst.Order, inst.TotalInPlan)
	}
	return hw
}

// Clone returns a deep copy that shares no slices or pointers with p.
func (p *Plan) Clone() *Plan {
	c := *p
	c.Config.CyclePattern = append([]decimal.Decimal(nil), p.Config.CyclePattern...)
	c.Installments = make([]Installment, len(p.Installments))
	for i, inst := range p.Installments {
		if inst.PaidAt != nil {
			at := *inst.PaidAt
			inst.PaidAt = &at
		}
		c.Installments[i] = inst
	}
	return &c
}

// SortInstallments orders installments by due date, ties broken by order.
func SortInstallments(insts []Installment) {
	sort.SliceStable(insts, func(i, j int) bool {
		if !insts[i].DueDate.Equal(insts[j].DueDate) {
			return insts[i].DueDate.Before(insts[j].DueDate)
		}
		return insts[i].Order < insts[j].Order
	})
}

// =============================================================================
// SETTLEMENT RESULT
// =============================================================================

// SettlementResult is everything one settlement changes. Callers must persist
// it as a single unit (see ApplySettlement); partial application breaks
// conservation.
type SettlementResult struct {
	PlanID                PlanID
	UpdatedInstallment    Installment
	CarryoverInstallment  *Installment
	ModifiedInstallments  []Installment
	DeletedInstallmentIDs []InstallmentID
	IsValid               bool
	UnappliedExcess       decimal.Decimal
	ErrorMessage          string

	// TotalInPlan is the installment count every installment should carry
	// after the result is applied. Zero means unchanged.
	TotalInPlan int
}

// Outcome classifies the settlement for logging and metrics.
func (r SettlementResult) Outcome() string {
	switch {
	case !r.IsValid:
		return "invalid"
	case r.CarryoverInstallment != nil:
		return "underpaid"
	case len(r.ModifiedInstallments) > 0 || len(r.DeletedInstallmentIDs) > 0 || r.UnappliedExcess.IsPositive():
		return "overpaid"
	default:
		return "exact"
	}
}

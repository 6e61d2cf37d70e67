/*
settlement.go - Reconciling an actual payment against a due installment

CASES (difference = paid - due):
  exact      (== 0): target paid at due, nothing else changes
  underpaid  (<  0): target paid at the actual amount, a carryover
                     installment for the shortfall is due one month later
  overpaid   (>  0): target paid at due; the excess removes or reduces the
                     remaining unpaid installments, latest due date first

Whatever cannot be absorbed is returned as UnappliedExcess.

PURITY:
  Settle never mutates the Plan it is given. It works on a clone and returns
  a SettlementResult describing every change. Persist that result as one
  unit with ApplySettlement, or apply it in memory with Plan.Apply.
*/
package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CarryoverMonths is how far past the underpaid installment a carryover is
// due. It does not follow the plan's own interval.
const CarryoverMonths = 1

// SettlementEngine records payments against installments.
type SettlementEngine struct {
	// Now stamps PaidAt. Defaults to time.Now.
	Now func() time.Time

	// NewID names carryover installments. Defaults to a random UUID.
	NewID func() InstallmentID
}

func NewSettlementEngine() *SettlementEngine {
	return &SettlementEngine{}
}

func (e *SettlementEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *SettlementEngine) newID() InstallmentID {
	if e.NewID != nil {
		return e.NewID()
	}
	return InstallmentID(uuid.NewString())
}

// Settle computes the effect of paying amount against installment id of p.
// On error the returned result has IsValid false and p is untouched.
func (e *SettlementEngine) Settle(p *Plan, id InstallmentID, amount decimal.Decimal) (SettlementResult, error) {
	work := p.Clone()

	target, ok := work.Installment(id)
	if !ok {
		return invalid(p.ID, id, ErrInstallmentNotInPlan)
	}
	if target.Paid {
		return invalid(p.ID, id, ErrAlreadyPaid)
	}
	if !amount.IsPositive() {
		return invalid(p.ID, id, ErrNonPositivePayment)
	}

	now := e.now()
	due := target.DueAmount
	difference := amount.Sub(due)

	result := SettlementResult{
		PlanID:          p.ID,
		IsValid:         true,
		UnappliedExcess: decimal.Zero,
	}

	var err error
	switch difference.Sign() {
	case 0:
		result.UpdatedInstallment, err = target.markPaid(due, now)

	case -1:
		result.UpdatedInstallment, err = target.markPaid(amount, now)
		count := work.highWater() + 1
		carryover := Installment{
			ID:          e.newID(),
			Order:       count,
			TotalInPlan: count,
			DueDate:     target.DueDate.AddMonths(CarryoverMonths),
			DueAmount:   difference.Neg(),
			AmountPaid:  decimal.Zero,
			Kind:        InstallmentRegular,
			Notes:       CarryoverNote,
		}
		result.UpdatedInstallment.TotalInPlan = count
		result.CarryoverInstallment = &carryover
		result.TotalInPlan = count

	default:
		result.UpdatedInstallment, err = target.markPaid(due, now)
		result.ModifiedInstallments, result.DeletedInstallmentIDs, result.UnappliedExcess =
			absorbExcess(work.Installments, id, difference)
	}
	if err != nil {
		return invalid(p.ID, id, err)
	}
	return result, nil
}

// absorbExcess walks the unpaid installments other than skip, latest due
// date first. Installments the excess fully covers are deleted; the first
// one it only partly covers is reduced and the walk stops.
func absorbExcess(installments []Installment, skip InstallmentID, excess decimal.Decimal) ([]Installment, []InstallmentID, decimal.Decimal) {
	var unpaid []Installment
	for _, inst := range installments {
		if !inst.Paid && inst.ID != skip {
			unpaid = append(unpaid, inst)
		}
	}
	SortInstallments(unpaid)

	var (
		modified []Installment
		deleted  []InstallmentID
	)
	for i := len(unpaid) - 1; i >= 0 && excess.IsPositive(); i-- {
		inst := unpaid[i]
		if excess.GreaterThanOrEqual(inst.DueAmount) {
			deleted = append(deleted, inst.ID)
			excess = excess.Sub(inst.DueAmount)
			continue
		}
		inst.DueAmount = inst.DueAmount.Sub(excess)
		excess = decimal.Zero
		modified = append(modified, inst)
	}
	return modified, deleted, excess
}

func invalid(planID PlanID, id InstallmentID, reason error) (SettlementResult, error) {
	err := &InvalidSettlementError{PlanID: planID, InstallmentID: id, Reason: reason}
	return SettlementResult{
		PlanID:          planID,
		IsValid:         false,
		UnappliedExcess: decimal.Zero,
		ErrorMessage:    err.Error(),
	}, err
}

// =============================================================================
// IN-MEMORY APPLICATION
// =============================================================================

// Apply folds a settlement result into p. Either every change lands or,
// on error, p is left as it was.
func (p *Plan) Apply(r SettlementResult) error {
	if !r.IsValid {
		return fmt.Errorf("apply settlement: %w", ErrInvalidSettlement)
	}
	if r.PlanID != "" && r.PlanID != p.ID {
		return fmt.Errorf("apply settlement for plan %s to plan %s: %w", r.PlanID, p.ID, ErrInstallmentNotInPlan)
	}

	deleted := make(map[InstallmentID]bool, len(r.DeletedInstallmentIDs))
	for _, id := range r.DeletedInstallmentIDs {
		deleted[id] = true
	}
	changed := make(map[InstallmentID]Installment, len(r.ModifiedInstallments)+1)
	for _, inst := range r.ModifiedInstallments {
		changed[inst.ID] = inst
	}
	changed[r.UpdatedInstallment.ID] = r.UpdatedInstallment

	seen := 0
	next := make([]Installment, 0, len(p.Installments)+1)
	for _, inst := range p.Installments {
		if deleted[inst.ID] {
			seen++
			continue
		}
		if c, ok := changed[inst.ID]; ok {
			inst = c
			seen++
		}
		next = append(next, inst)
	}
	if seen != len(deleted)+len(changed) {
		return fmt.Errorf("apply settlement to plan %s: %w", p.ID, ErrInstallmentNotFound)
	}
	if r.CarryoverInstallment != nil {
		next = append(next, *r.CarryoverInstallment)
	}
	if r.TotalInPlan > 0 {
		for i := range next {
			next[i].TotalInPlan = r.TotalInPlan
		}
	}

	SortInstallments(next)
	p.Installments = next
	return nil
}

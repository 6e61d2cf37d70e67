package plan

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INSTALLMENT STATE MACHINE
// =============================================================================
//
//   Unpaid --settle--> Paid
//   Paid   --reset---> Unpaid
//
// Reset only touches the installment itself. Carryover or reductions that
// the original settlement produced on sibling installments stay in place.

type State string

const (
	StateUnpaid State = "unpaid"
	StatePaid   State = "paid"
)

func (i Installment) State() State {
	if i.Paid {
		return StatePaid
	}
	return StateUnpaid
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	return (from == StateUnpaid && to == StatePaid) ||
		(from == StatePaid && to == StateUnpaid)
}

// markPaid records a settlement. Only the settlement engine calls this.
func (i Installment) markPaid(amount decimal.Decimal, at time.Time) (Installment, error) {
	if !CanTransition(i.State(), StatePaid) {
		return i, &TransitionError{InstallmentID: i.ID, From: i.State(), To: StatePaid}
	}
	at = at.UTC()
	i.Paid = true
	i.AmountPaid = amount
	i.PaidAt = &at
	return i, nil
}

// MarkUnpaid resets a paid installment: AmountPaid goes back to zero and the
// settlement timestamp is cleared.
func (i Installment) MarkUnpaid() (Installment, error) {
	if !CanTransition(i.State(), StateUnpaid) {
		return i, &TransitionError{InstallmentID: i.ID, From: i.State(), To: StateUnpaid}
	}
	i.Paid = false
	i.AmountPaid = decimal.Zero
	i.PaidAt = nil
	return i, nil
}

// MarkUnpaid resets the installment with the given id inside the plan and
// returns its new state.
func (p *Plan) MarkUnpaid(id InstallmentID) (Installment, error) {
	for idx, inst := range p.Installments {
		if inst.ID != id {
			continue
		}
		reset, err := inst.MarkUnpaid()
		if err != nil {
			return inst, err
		}
		p.Installments[idx] = reset
		return reset, nil
	}
	return Installment{}, ErrInstallmentNotFound
}

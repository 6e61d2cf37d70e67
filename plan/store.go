/*
store.go - Persistence interface for plans and installments

PURPOSE:
  The engine never persists anything itself. Store is the boundary to the
  persistence collaborator. A SettlementResult touches several installments
  at once (target, carryover, reductions, deletions, plan-wide counts), so
  it must be written through TxStore.WithTx as one unit.

ATOMICITY CONTRACT:
  If any write inside ApplySettlement fails, the transaction is rolled back
  and the caller discards the whole result. Never retry piecemeal: a
  partial retry can double-insert a carryover or re-delete an absorbed
  installment.

IMPLEMENTATIONS:
  - plan/store/memory.go: In-memory, snapshot + rollback
  - store/sqlite/sqlite.go: SQLite, database transaction
*/
package plan

import (
	"context"
	"fmt"
	"time"
)

// PlanRecord is the header of a stored plan without its installments.
type PlanRecord struct {
	ID               PlanID
	Name             string
	Kind             PlanKind
	InstallmentCount int
	CreatedAt        time.Time
}

// Store persists plans and their installments.
type Store interface {
	// SavePlan creates a plan with all its installments.
	// Returns ErrDuplicatePlan if the id is taken.
	SavePlan(ctx context.Context, p Plan) error

	// LoadPlan returns the plan with installments in chronological order,
	// or ErrPlanNotFound.
	LoadPlan(ctx context.Context, id PlanID) (*Plan, error)

	ListPlans(ctx context.Context) ([]PlanRecord, error)

	DeletePlan(ctx context.Context, id PlanID) error

	InsertInstallment(ctx context.Context, planID PlanID, inst Installment) error

	// UpdateInstallment replaces the stored installment with the same id.
	// Returns ErrInstallmentNotFound if there is none.
	UpdateInstallment(ctx context.Context, planID PlanID, inst Installment) error

	DeleteInstallment(ctx context.Context, planID PlanID, id InstallmentID) error

	// SetTotalInPlan rewrites TotalInPlan on every installment of the plan.
	SetTotalInPlan(ctx context.Context, planID PlanID, n int) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the given Store is
	// rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// ApplySettlement persists r as a single transaction.
func ApplySettlement(ctx context.Context, s TxStore, planID PlanID, r SettlementResult) error {
	if !r.IsValid {
		return fmt.Errorf("apply settlement: %w", ErrInvalidSettlement)
	}

	return s.WithTx(ctx, func(tx Store) error {
		if err := tx.UpdateInstallment(ctx, planID, r.UpdatedInstallment); err != nil {
			return fmt.Errorf("update target installment: %w", err)
		}
		if r.CarryoverInstallment != nil {
			if err := tx.InsertInstallment(ctx, planID, *r.CarryoverInstallment); err != nil {
				return fmt.Errorf("insert carryover installment: %w", err)
			}
		}
		for _, inst := range r.ModifiedInstallments {
			if err := tx.UpdateInstallment(ctx, planID, inst); err != nil {
				return fmt.Errorf("reduce installment %s: %w", inst.ID, err)
			}
		}
		for _, id := range r.DeletedInstallmentIDs {
			if err := tx.DeleteInstallment(ctx, planID, id); err != nil {
				return fmt.Errorf("delete installment %s: %w", id, err)
			}
		}
		if r.TotalInPlan > 0 {
			if err := tx.SetTotalInPlan(ctx, planID, r.TotalInPlan); err != nil {
				return fmt.Errorf("update installment count: %w", err)
			}
		}
		return nil
	})
}

/*
service.go - Single mutation entry point for stored plans

PURPOSE:
  Transports (HTTP, scheduled jobs) never edit installments directly. They
  go through Service, which generates, settles and resets plans and hands
  the resulting changes to the store.

SERIALIZATION:
  Settlement and reset hold a per-plan lock for the whole
  load -> compute -> persist sequence. Two payments against the same plan
  never interleave; payments against different plans run in parallel.

FAILURE:
  If ApplySettlement fails, the transaction is rolled back and the whole
  SettlementResult is discarded. The caller may submit the payment again;
  it will be recomputed from the stored state.
*/
package plan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payplan-engine/metrics"
)

type Service struct {
	Store   TxStore
	Engine  *SettlementEngine
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	// Now stamps CreatedAt. Defaults to time.Now.
	Now func() time.Time

	locks planLocks
}

// NewService wires a service around store. logger and rec may be nil.
func NewService(store TxStore, logger *slog.Logger, rec *metrics.Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:   store,
		Engine:  NewSettlementEngine(),
		Logger:  logger.With("component", "plan"),
		Metrics: rec,
		Now:     time.Now,
	}
}

// Preview generates the schedule for cfg without storing anything.
func (s *Service) Preview(cfg PlanConfiguration) ([]Installment, error) {
	return Generate(cfg)
}

// CreatePlan generates the schedule for cfg and stores it as a new plan.
func (s *Service) CreatePlan(ctx context.Context, name string, cfg PlanConfiguration) (*Plan, error) {
	installments, err := Generate(cfg)
	if err != nil {
		return nil, err
	}
	for i := range installments {
		installments[i].ID = InstallmentID(uuid.NewString())
	}

	p := Plan{
		ID:           PlanID(uuid.NewString()),
		Name:         name,
		Config:       cfg,
		Installments: installments,
		CreatedAt:    s.Now().UTC(),
	}
	if err := s.Store.SavePlan(ctx, p); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}

	s.Metrics.PlanCreated()
	s.Logger.Info("plan created",
		"plan_id", p.ID,
		"kind", cfg.Kind,
		"total_amount", cfg.TotalAmount.String(),
		"installments", len(installments),
	)
	return &p, nil
}

func (s *Service) GetPlan(ctx context.Context, id PlanID) (*Plan, error) {
	return s.Store.LoadPlan(ctx, id)
}

func (s *Service) ListPlans(ctx context.Context) ([]PlanRecord, error) {
	return s.Store.ListPlans(ctx)
}

func (s *Service) DeletePlan(ctx context.Context, id PlanID) error {
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.Store.DeletePlan(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("plan deleted", "plan_id", id)
	return nil
}

// RecordPayment settles amount against one installment and persists every
// resulting change atomically.
func (s *Service) RecordPayment(ctx context.Context, planID PlanID, installmentID InstallmentID, amount decimal.Decimal) (SettlementResult, error) {
	unlock := s.locks.lock(planID)
	defer unlock()

	p, err := s.Store.LoadPlan(ctx, planID)
	if err != nil {
		return SettlementResult{}, err
	}

	result, err := s.Engine.Settle(p, installmentID, amount)
	if err != nil {
		s.Metrics.Settlement(result.Outcome(), decimal.Zero)
		s.Logger.Warn("settlement rejected",
			"plan_id", planID,
			"installment_id", installmentID,
			"amount", amount.String(),
			"error", err,
		)
		return result, err
	}

	if err := ApplySettlement(ctx, s.Store, planID, result); err != nil {
		s.Metrics.PersistFailure()
		s.Logger.Error("settlement discarded: persist failed",
			"plan_id", planID,
			"installment_id", installmentID,
			"error", err,
		)
		return SettlementResult{}, fmt.Errorf("persist settlement: %w", err)
	}

	s.Metrics.Settlement(result.Outcome(), result.UnappliedExcess)
	attrs := []any{
		"plan_id", planID,
		"installment_id", installmentID,
		"outcome", result.Outcome(),
		"amount", amount.String(),
		"deleted", len(result.DeletedInstallmentIDs),
		"reduced", len(result.ModifiedInstallments),
	}
	if result.CarryoverInstallment != nil {
		attrs = append(attrs, "carryover_amount", result.CarryoverInstallment.DueAmount.String(),
			"carryover_due", result.CarryoverInstallment.DueDate.String())
	}
	if result.UnappliedExcess.IsPositive() {
		attrs = append(attrs, "unapplied_excess", result.UnappliedExcess.String())
		s.Logger.Warn("settlement left unapplied excess", attrs...)
	} else {
		s.Logger.Info("settlement recorded", attrs...)
	}
	return result, nil
}

// MarkUnpaid resets a paid installment. Effects the original settlement had
// on other installments are not reversed.
func (s *Service) MarkUnpaid(ctx context.Context, planID PlanID, installmentID InstallmentID) (Installment, error) {
	unlock := s.locks.lock(planID)
	defer unlock()

	p, err := s.Store.LoadPlan(ctx, planID)
	if err != nil {
		return Installment{}, err
	}
	reset, err := p.MarkUnpaid(installmentID)
	if err != nil {
		return Installment{}, err
	}
	if err := s.Store.UpdateInstallment(ctx, planID, reset); err != nil {
		return Installment{}, fmt.Errorf("persist reset: %w", err)
	}

	s.Logger.Info("installment marked unpaid", "plan_id", planID, "installment_id", installmentID)
	return reset, nil
}

func (s *Service) Summary(ctx context.Context, planID PlanID, today Date) (PlanSummary, error) {
	p, err := s.Store.LoadPlan(ctx, planID)
	if err != nil {
		return PlanSummary{}, err
	}
	return Summarize(p, today), nil
}

// OverdueEntry is one plan with overdue installments.
type OverdueEntry struct {
	PlanID  PlanID
	Name    string
	Summary PlanSummary
}

// OverdueReport lists every plan that has an installment due before today.
func (s *Service) OverdueReport(ctx context.Context, today Date) ([]OverdueEntry, error) {
	records, err := s.Store.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	var entries []OverdueEntry
	for _, rec := range records {
		p, err := s.Store.LoadPlan(ctx, rec.ID)
		if err != nil {
			if IsNotFound(err) {
				continue // deleted since listing
			}
			return nil, err
		}
		summary := Summarize(p, today)
		if summary.OverdueCount > 0 {
			entries = append(entries, OverdueEntry{PlanID: p.ID, Name: p.Name, Summary: summary})
		}
	}
	return entries, nil
}

// =============================================================================
// PER-PLAN LOCKS
// =============================================================================

type planLocks struct {
	mu    sync.Mutex
	locks map[PlanID]*planLock
}

type planLock struct {
	mu   sync.Mutex
	refs int
}

// lock blocks until the plan's lock is held and returns its release func.
// Entries are dropped once no goroutine holds or waits on them.
func (l *planLocks) lock(id PlanID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[PlanID]*planLock)
	}
	pl, ok := l.locks[id]
	if !ok {
		pl = &planLock{}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

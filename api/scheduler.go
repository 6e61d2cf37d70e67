/*
scheduler.go - Scheduled overdue sweep

PURPOSE:
  Periodically builds the overdue report and logs every plan with an
  installment past due. It decides nothing and notifies no one; it gives
  operators (and log-based alerting) a regular view of late payments.

CONFIGURATION:
  - Spec: cron expression or descriptor (default "@hourly")
  - Enabled: whether the sweep runs at all

USAGE:
  sweeper := NewOverdueSweeper(svc, logger)
  if err := sweeper.Start(); err != nil { ... }
  defer sweeper.Stop()
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/payplan-engine/plan"
)

const DefaultSweepSpec = "@hourly"

// OverdueSweeper runs the overdue report on a cron schedule.
type OverdueSweeper struct {
	Service *plan.Service
	Logger  *slog.Logger
	Spec    string
	Enabled bool
	Timeout time.Duration
	Today   func() plan.Date

	cron *cron.Cron
	mu   sync.Mutex
}

func NewOverdueSweeper(svc *plan.Service, logger *slog.Logger) *OverdueSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueSweeper{
		Service: svc,
		Logger:  logger.With("component", "overdue_sweep"),
		Spec:    DefaultSweepSpec,
		Enabled: true,
		Timeout: time.Minute,
		Today:   plan.Today,
	}
}

// Start schedules the sweep. It returns an error for an invalid Spec.
func (s *OverdueSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.Spec, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c

	s.Logger.Info("started", "spec", s.Spec)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *OverdueSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.Logger.Info("stopped")
}

// Sweep runs one pass and returns the overdue entries it found.
func (s *OverdueSweeper) Sweep(ctx context.Context) []plan.OverdueEntry {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	today := s.Today()
	entries, err := s.Service.OverdueReport(ctx, today)
	if err != nil {
		s.Logger.Error("overdue report failed", "error", err)
		return nil
	}

	for _, e := range entries {
		attrs := []any{
			"plan_id", e.PlanID,
			"plan_name", e.Name,
			"overdue_count", e.Summary.OverdueCount,
			"overdue_amount", e.Summary.OverdueAmount.String(),
		}
		if e.Summary.NextPayment != nil {
			attrs = append(attrs, "oldest_due", e.Summary.NextPayment.DueDate.String())
		}
		s.Logger.Warn("plan has overdue installments", attrs...)
	}
	s.Logger.Info("sweep complete", "as_of", today.String(), "overdue_plans", len(entries))
	return entries
}

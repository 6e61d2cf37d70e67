package api

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan-engine/plan"
	"github.com/warp/payplan-engine/plan/store"
)

func newSweeper(t *testing.T) (*OverdueSweeper, *plan.Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := plan.NewService(store.NewMemory(), logger, nil)
	sw := NewOverdueSweeper(svc, logger)
	sw.Today = func() plan.Date { return plan.NewDate(2025, 6, 1) }
	return sw, svc, &buf
}

func TestOverdueSweeper_Sweep(t *testing.T) {
	// GIVEN: One plan behind schedule and one paid up
	sw, svc, logs := newSweeper(t)
	ctx := context.Background()
	cfg := plan.PlanConfiguration{
		Kind:        plan.KindIndividual,
		TotalAmount: decimal.NewFromInt(800),
		StartDate:   plan.NewDate(2025, 3, 1),
	}
	late, err := svc.CreatePlan(ctx, "Late florist", cfg)
	require.NoError(t, err)
	paid, err := svc.CreatePlan(ctx, "Paid venue", cfg)
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, paid.ID, paid.Installments[0].ID, decimal.NewFromInt(800))
	require.NoError(t, err)

	// WHEN: Sweeping
	entries := sw.Sweep(ctx)

	// THEN: Only the late plan is reported and logged
	require.Len(t, entries, 1)
	assert.Equal(t, late.ID, entries[0].PlanID)
	assert.Contains(t, logs.String(), "plan has overdue installments")
	assert.Contains(t, logs.String(), "oldest_due=2025-03-01")
	assert.Contains(t, logs.String(), "overdue_plans=1")
}

func TestOverdueSweeper_StartStop(t *testing.T) {
	sw, _, _ := newSweeper(t)
	sw.Spec = "@every 1h"

	require.NoError(t, sw.Start())
	require.NoError(t, sw.Start(), "second start is a no-op")
	sw.Stop()
	sw.Stop()
}

func TestOverdueSweeper_InvalidSpec(t *testing.T) {
	sw, _, _ := newSweeper(t)
	sw.Spec = "every tuesday"

	assert.Error(t, sw.Start())
}

func TestOverdueSweeper_Disabled(t *testing.T) {
	sw, _, _ := newSweeper(t)
	sw.Enabled = false
	sw.Spec = "not a spec"

	assert.NoError(t, sw.Start())
	sw.Stop()
}

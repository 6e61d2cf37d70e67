package plan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan-engine/plan"
)

func TestSummarize_FreshPlan(t *testing.T) {
	p := threeMonthPlan()

	s := plan.Summarize(p, date(2025, time.February, 1))

	assert.Equal(t, plan.PlanID("plan-1"), s.PlanID)
	assert.True(t, s.TotalAmount.Equal(dec("700")))
	assert.True(t, s.AmountPaid.IsZero())
	assert.True(t, s.AmountRemaining.Equal(dec("700")))
	assert.True(t, s.PercentPaid.IsZero())
	assert.Equal(t, 3, s.InstallmentCount)
	assert.Zero(t, s.PaidCount)
	assert.Zero(t, s.OverdueCount)
	assert.True(t, s.OverdueAmount.IsZero())
	require.NotNil(t, s.NextPayment)
	assert.Equal(t, plan.InstallmentID("mar"), s.NextPayment.ID)
	assert.False(t, s.IsComplete)
}

func TestSummarize_PartialProgressAndOverdue(t *testing.T) {
	// GIVEN: The March installment paid, April and May unpaid
	p := threeMonthPlan()
	r, err := testEngine().Settle(p, "mar", dec("300"))
	require.NoError(t, err)
	require.NoError(t, p.Apply(r))

	// WHEN: Summarizing on May 1 (April late, May due today)
	s := plan.Summarize(p, date(2025, time.May, 1))

	// THEN: Only April is overdue; "due today" is not late
	assert.True(t, s.AmountPaid.Equal(dec("300")))
	assert.True(t, s.AmountRemaining.Equal(dec("400")))
	assert.Equal(t, "42.86", s.PercentPaid.StringFixed(2))
	assert.Equal(t, 1, s.PaidCount)
	assert.Equal(t, 1, s.OverdueCount)
	assert.True(t, s.OverdueAmount.Equal(dec("200")))
	require.NotNil(t, s.NextPayment)
	assert.Equal(t, plan.InstallmentID("apr"), s.NextPayment.ID)
}

func TestSummarize_CompletePlan(t *testing.T) {
	p := testPlan(unpaid("i1", 1, date(2025, time.March, 1), "500"))
	r, err := testEngine().Settle(p, "i1", dec("500"))
	require.NoError(t, err)
	require.NoError(t, p.Apply(r))

	s := plan.Summarize(p, date(2026, time.January, 1))

	assert.True(t, s.IsComplete)
	assert.Nil(t, s.NextPayment)
	assert.Zero(t, s.OverdueCount)
	assert.Equal(t, "100", s.PercentPaid.String())
}

func TestSummarize_EmptyPlan(t *testing.T) {
	s := plan.Summarize(&plan.Plan{ID: "empty"}, date(2025, time.January, 1))

	assert.True(t, s.TotalAmount.IsZero())
	assert.True(t, s.PercentPaid.IsZero(), "no division by zero")
	assert.True(t, s.IsComplete)
}

func TestSummarize_IsIdempotent(t *testing.T) {
	p := threeMonthPlan()
	today := date(2025, time.April, 15)

	first := plan.Summarize(p, today)
	second := plan.Summarize(p, today)

	assert.Equal(t, first, second)
}

package plan_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan-engine/plan"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, plan.CanTransition(plan.StateUnpaid, plan.StatePaid))
	assert.True(t, plan.CanTransition(plan.StatePaid, plan.StateUnpaid))
	assert.False(t, plan.CanTransition(plan.StatePaid, plan.StatePaid))
	assert.False(t, plan.CanTransition(plan.StateUnpaid, plan.StateUnpaid))
}

func TestMarkUnpaid_ResetsOnlyTarget(t *testing.T) {
	// GIVEN: An underpayment that produced a carryover
	p := testPlan(unpaid("i1", 1, date(2025, time.March, 1), "500"))
	r, err := testEngine().Settle(p, "i1", dec("300"))
	require.NoError(t, err)
	require.NoError(t, p.Apply(r))
	require.Len(t, p.Installments, 2)

	// WHEN: Resetting the paid installment
	reset, err := p.MarkUnpaid("i1")
	require.NoError(t, err)

	// THEN: The target is unpaid again with no payment trace
	assert.Equal(t, plan.StateUnpaid, reset.State())
	assert.True(t, reset.AmountPaid.IsZero())
	assert.Nil(t, reset.PaidAt)
	assert.True(t, reset.DueAmount.Equal(dec("500")))

	// AND: The carryover stays in the plan
	require.Len(t, p.Installments, 2)
	assert.True(t, p.Installments[1].IsCarryover())
	assert.False(t, p.Installments[0].Paid)
}

func TestMarkUnpaid_AlreadyUnpaid(t *testing.T) {
	p := threeMonthPlan()

	_, err := p.MarkUnpaid("mar")

	require.Error(t, err)
	assert.ErrorIs(t, err, plan.ErrInvalidTransition)
	var te *plan.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, plan.StateUnpaid, te.From)
	assert.Equal(t, plan.StateUnpaid, te.To)
	assert.True(t, plan.IsConflict(err))
}

func TestMarkUnpaid_UnknownInstallment(t *testing.T) {
	p := threeMonthPlan()

	_, err := p.MarkUnpaid("ghost")

	assert.ErrorIs(t, err, plan.ErrInstallmentNotFound)
	assert.True(t, plan.IsNotFound(err))
}

func TestSettle_AfterResetIsAllowed(t *testing.T) {
	// GIVEN: A paid-then-reset installment
	p := threeMonthPlan()
	r, err := testEngine().Settle(p, "mar", dec("300"))
	require.NoError(t, err)
	require.NoError(t, p.Apply(r))
	_, err = p.MarkUnpaid("mar")
	require.NoError(t, err)

	// WHEN: Settling it again
	r, err = testEngine().Settle(p, "mar", dec("300"))

	// THEN: Unpaid -> Paid is legal once more
	require.NoError(t, err)
	assert.True(t, r.UpdatedInstallment.Paid)
}

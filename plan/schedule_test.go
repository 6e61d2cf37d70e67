package plan_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan-engine/plan"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) plan.Date {
	return plan.NewDate(year, month, day)
}

func sumDue(insts []plan.Installment) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range insts {
		total = total.Add(inst.DueAmount)
	}
	return total
}

func dueAmounts(insts []plan.Installment) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.DueAmount.String()
	}
	return out
}

func dueDates(insts []plan.Installment) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.DueDate.String()
	}
	return out
}

// =============================================================================
// GENERATION BY KIND
// =============================================================================

func TestGenerate_Individual(t *testing.T) {
	// GIVEN: A one-off plan
	cfg := plan.PlanConfiguration{
		Kind:                 plan.KindIndividual,
		TotalAmount:          dec("800"),
		StartDate:            date(2025, time.March, 1),
		FirstInstallmentKind: plan.InstallmentRetainer,
	}

	// WHEN: Generating
	insts, err := plan.Generate(cfg)
	require.NoError(t, err)

	// THEN: One installment for the full amount on the start date
	require.Len(t, insts, 1)
	assert.True(t, insts[0].DueAmount.Equal(dec("800")))
	assert.Equal(t, "2025-03-01", insts[0].DueDate.String())
	assert.Equal(t, plan.InstallmentRetainer, insts[0].Kind)
	assert.Equal(t, 1, insts[0].Order)
	assert.Equal(t, 1, insts[0].TotalInPlan)
	assert.False(t, insts[0].Paid)
	assert.True(t, insts[0].AmountPaid.IsZero())
	assert.Empty(t, insts[0].ID, "ids are assigned by the plan owner")
}

func TestGenerate_MonthlyRecurring_TruncatesLastInstallment(t *testing.T) {
	// GIVEN: 1000 in chunks of 300, monthly from Jan 15
	cfg := plan.PlanConfiguration{
		Kind:             plan.KindMonthlyRecurring,
		TotalAmount:      dec("1000"),
		StartDate:        date(2025, time.January, 15),
		PerPaymentAmount: dec("300"),
	}

	insts, err := plan.Generate(cfg)
	require.NoError(t, err)

	// THEN: 300, 300, 300, 100 on consecutive months
	assert.Equal(t, []string{"300", "300", "300", "100"}, dueAmounts(insts))
	assert.Equal(t, []string{"2025-01-15", "2025-02-15", "2025-03-15", "2025-04-15"}, dueDates(insts))
	for i, inst := range insts {
		assert.Equal(t, i+1, inst.Order)
		assert.Equal(t, 4, inst.TotalInPlan)
		assert.Equal(t, plan.InstallmentRegular, inst.Kind)
	}
}

func TestGenerate_FixedInterval(t *testing.T) {
	// GIVEN: Quarterly payments of 1500 toward 6000, first tagged deposit
	cfg := plan.PlanConfiguration{
		Kind:                 plan.KindFixedInterval,
		TotalAmount:          dec("6000"),
		StartDate:            date(2025, time.February, 1),
		PerPaymentAmount:     dec("1500"),
		IntervalMonths:       3,
		FirstInstallmentKind: plan.InstallmentDeposit,
	}

	insts, err := plan.Generate(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-02-01", "2025-05-01", "2025-08-01", "2025-11-01"}, dueDates(insts))
	assert.Equal(t, plan.InstallmentDeposit, insts[0].Kind)
	for _, inst := range insts[1:] {
		assert.Equal(t, plan.InstallmentRegular, inst.Kind)
	}
}

func TestGenerate_Cyclical(t *testing.T) {
	// GIVEN: Pattern [100,150,100] toward 475
	cfg := plan.PlanConfiguration{
		Kind:         plan.KindCyclical,
		TotalAmount:  dec("475"),
		StartDate:    date(2025, time.January, 1),
		CyclePattern: []decimal.Decimal{dec("100"), dec("150"), dec("100")},
	}

	insts, err := plan.Generate(cfg)
	require.NoError(t, err)

	// THEN: The pattern repeats and the last amount is truncated to what is left
	assert.Equal(t, []string{"100", "150", "100", "100", "25"}, dueAmounts(insts))
	assert.Equal(t,
		[]string{"2025-01-01", "2025-02-01", "2025-03-01", "2025-04-01", "2025-05-01"},
		dueDates(insts))
}

func TestGenerate_PerPaymentLargerThanTotal(t *testing.T) {
	cfg := plan.PlanConfiguration{
		Kind:             plan.KindMonthlyRecurring,
		TotalAmount:      dec("250"),
		StartDate:        date(2025, time.January, 1),
		PerPaymentAmount: dec("1000"),
	}

	insts, err := plan.Generate(cfg)
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.True(t, insts[0].DueAmount.Equal(dec("250")))
}

func TestGenerate_ClampsToMonthEnd(t *testing.T) {
	// GIVEN: A monthly plan starting on Jan 31
	cfg := plan.PlanConfiguration{
		Kind:             plan.KindMonthlyRecurring,
		TotalAmount:      dec("400"),
		StartDate:        date(2024, time.January, 31),
		PerPaymentAmount: dec("100"),
	}

	insts, err := plan.Generate(cfg)
	require.NoError(t, err)

	// THEN: Short months clamp, and later months return to the 31st
	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"}, dueDates(insts))
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestGenerate_ConservesTotalAmount(t *testing.T) {
	configs := []plan.PlanConfiguration{
		{Kind: plan.KindIndividual, TotalAmount: dec("99.99"), StartDate: date(2025, 1, 1)},
		{Kind: plan.KindMonthlyRecurring, TotalAmount: dec("1000.01"), StartDate: date(2025, 1, 1), PerPaymentAmount: dec("33.33")},
		{Kind: plan.KindFixedInterval, TotalAmount: dec("12345.67"), StartDate: date(2025, 1, 1), PerPaymentAmount: dec("1000"), IntervalMonths: 2},
		{Kind: plan.KindCyclical, TotalAmount: dec("3200"), StartDate: date(2025, 1, 1), CyclePattern: []decimal.Decimal{dec("1000"), dec("500"), dec("500")}},
	}

	for _, cfg := range configs {
		t.Run(string(cfg.Kind), func(t *testing.T) {
			insts, err := plan.Generate(cfg)
			require.NoError(t, err)

			assert.True(t, sumDue(insts).Equal(cfg.TotalAmount),
				"sum %s != total %s", sumDue(insts), cfg.TotalAmount)
			for i := 1; i < len(insts); i++ {
				assert.True(t, insts[i-1].DueDate.Before(insts[i].DueDate), "dates strictly increase")
			}
			for _, inst := range insts {
				assert.True(t, inst.DueAmount.IsPositive())
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := plan.PlanConfiguration{
		Kind:             plan.KindMonthlyRecurring,
		TotalAmount:      dec("1000"),
		StartDate:        date(2025, time.January, 15),
		PerPaymentAmount: dec("300"),
	}

	a, err := plan.Generate(cfg)
	require.NoError(t, err)
	b, err := plan.Generate(cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// =============================================================================
// CONFIGURATION ERRORS
// =============================================================================

func TestGenerate_RejectsInvalidConfiguration(t *testing.T) {
	start := date(2025, time.January, 1)
	tests := []struct {
		name  string
		cfg   plan.PlanConfiguration
		field string
	}{
		{"unknown kind", plan.PlanConfiguration{Kind: "weekly", TotalAmount: dec("100"), StartDate: start}, "kind"},
		{"zero total", plan.PlanConfiguration{Kind: plan.KindIndividual, TotalAmount: decimal.Zero, StartDate: start}, "total_amount"},
		{"negative total", plan.PlanConfiguration{Kind: plan.KindIndividual, TotalAmount: dec("-5"), StartDate: start}, "total_amount"},
		{"missing start", plan.PlanConfiguration{Kind: plan.KindIndividual, TotalAmount: dec("100")}, "start_date"},
		{"zero per payment", plan.PlanConfiguration{Kind: plan.KindMonthlyRecurring, TotalAmount: dec("100"), StartDate: start}, "per_payment_amount"},
		{"zero interval", plan.PlanConfiguration{Kind: plan.KindFixedInterval, TotalAmount: dec("100"), StartDate: start, PerPaymentAmount: dec("10")}, "interval_months"},
		{"empty pattern", plan.PlanConfiguration{Kind: plan.KindCyclical, TotalAmount: dec("100"), StartDate: start}, "cycle_pattern"},
		{"zero in pattern", plan.PlanConfiguration{Kind: plan.KindCyclical, TotalAmount: dec("100"), StartDate: start,
			CyclePattern: []decimal.Decimal{dec("10"), decimal.Zero}}, "cycle_pattern[1]"},
		{"unknown first kind", plan.PlanConfiguration{Kind: plan.KindIndividual, TotalAmount: dec("100"), StartDate: start,
			FirstInstallmentKind: "bonus"}, "first_installment_kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insts, err := plan.Generate(tt.cfg)
			require.Error(t, err)
			assert.Nil(t, insts)
			assert.True(t, errors.Is(err, plan.ErrInvalidConfiguration))

			var ce *plan.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
			assert.True(t, plan.IsClientError(err))
		})
	}
}

func TestGenerate_RejectsRunawaySchedule(t *testing.T) {
	cfg := plan.PlanConfiguration{
		Kind:             plan.KindMonthlyRecurring,
		TotalAmount:      dec("1000000"),
		StartDate:        date(2025, time.January, 1),
		PerPaymentAmount: dec("0.01"),
	}

	_, err := plan.Generate(cfg)
	assert.ErrorIs(t, err, plan.ErrInvalidConfiguration)
}

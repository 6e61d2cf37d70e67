package plan

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxInstallments bounds a generated schedule. A per-payment amount that is
// tiny relative to the total would otherwise produce an unusable schedule.
const MaxInstallments = 600

// =============================================================================
// SCHEDULE GENERATOR
// =============================================================================

// Generate expands cfg into an ordered list of installments whose DueAmount
// sums to cfg.TotalAmount exactly. The last installment is truncated to the
// remaining balance. Generate is deterministic: installment IDs are left
// empty for the owner of the plan to assign.
//
// On a ConfigurationError no installments are returned.
func Generate(cfg PlanConfiguration) ([]Installment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	step, amountAt := cadence(cfg)
	first := cfg.FirstInstallmentKind
	if first == "" {
		first = InstallmentRegular
	}

	var installments []Installment
	remaining := cfg.TotalAmount
	for k := 0; remaining.IsPositive(); k++ {
		if k == MaxInstallments {
			return nil, &ConfigurationError{
				Field:  "per_payment_amount",
				Reason: fmt.Sprintf("schedule would exceed %d installments", MaxInstallments),
			}
		}

		amount := amountAt(k)
		if amount.GreaterThan(remaining) {
			amount = remaining
		}

		kind := InstallmentRegular
		if k == 0 {
			kind = first
		}

		installments = append(installments, Installment{
			Order:      k + 1,
			DueDate:    cfg.StartDate.AddMonths(k * step),
			DueAmount:  amount,
			AmountPaid: decimal.Zero,
			Kind:       kind,
		})
		remaining = remaining.Sub(amount)
	}

	for i := range installments {
		installments[i].TotalInPlan = len(installments)
	}
	return installments, nil
}

// cadence returns the month step between installments and the nominal
// amount of the k-th installment (before truncation).
func cadence(cfg PlanConfiguration) (int, func(k int) decimal.Decimal) {
	switch cfg.Kind {
	case KindMonthlyRecurring:
		return 1, func(int) decimal.Decimal { return cfg.PerPaymentAmount }
	case KindFixedInterval:
		return cfg.IntervalMonths, func(int) decimal.Decimal { return cfg.PerPaymentAmount }
	case KindCyclical:
		pattern := cfg.CyclePattern
		return 1, func(k int) decimal.Decimal { return pattern[k%len(pattern)] }
	default:
		return 1, func(int) decimal.Decimal { return cfg.TotalAmount }
	}
}

// Validate checks cfg without generating anything.
func (cfg PlanConfiguration) Validate() error {
	if !cfg.Kind.IsValid() {
		return &ConfigurationError{Field: "kind", Reason: fmt.Sprintf("unknown plan kind %q", cfg.Kind)}
	}
	if !cfg.TotalAmount.IsPositive() {
		return &ConfigurationError{Field: "total_amount", Reason: "must be greater than zero"}
	}
	if cfg.StartDate.IsZero() {
		return &ConfigurationError{Field: "start_date", Reason: "is required"}
	}
	if cfg.FirstInstallmentKind != "" && !cfg.FirstInstallmentKind.IsValid() {
		return &ConfigurationError{
			Field:  "first_installment_kind",
			Reason: fmt.Sprintf("unknown installment kind %q", cfg.FirstInstallmentKind),
		}
	}

	switch cfg.Kind {
	case KindMonthlyRecurring:
		if !cfg.PerPaymentAmount.IsPositive() {
			return &ConfigurationError{Field: "per_payment_amount", Reason: "must be greater than zero"}
		}
	case KindFixedInterval:
		if !cfg.PerPaymentAmount.IsPositive() {
			return &ConfigurationError{Field: "per_payment_amount", Reason: "must be greater than zero"}
		}
		if cfg.IntervalMonths < 1 {
			return &ConfigurationError{Field: "interval_months", Reason: "must be at least 1"}
		}
	case KindCyclical:
		if len(cfg.CyclePattern) == 0 {
			return &ConfigurationError{Field: "cycle_pattern", Reason: "must contain at least one amount"}
		}
		for i, amt := range cfg.CyclePattern {
			if !amt.IsPositive() {
				return &ConfigurationError{
					Field:  fmt.Sprintf("cycle_pattern[%d]", i),
					Reason: "must be greater than zero",
				}
			}
		}
	}
	return nil
}

/*
Package factory provides JSON to Go plan configuration conversion.

PURPOSE:
  Converts JSON plan definitions into plan.PlanConfiguration values, and
  back. The HTTP API accepts this format and the SQLite store keeps it in
  the plans table, so a stored plan can always be regenerated.

JSON SCHEMA:
  {
    "kind": "fixed_interval",
    "total_amount": "12000",
    "start_date": "2025-03-01",
    "per_payment_amount": "2500",
    "interval_months": 3,
    "cycle_pattern": ["100", "150"],
    "first_installment_kind": "deposit"
  }

  Amounts are decimal strings. Bare JSON numbers are accepted too, but
  strings avoid float rounding on the way in.

USAGE:
  f := factory.NewPlanFactory()
  cfg, err := f.ParseConfig(jsonString)
  installments, err := plan.Generate(cfg)

SEE ALSO:
  - plan/types.go: PlanConfiguration
  - plan/schedule.go: Validation rules
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan-engine/plan"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a plan configuration.
type PlanJSON struct {
	Kind                 string            `json:"kind"`
	TotalAmount          decimal.Decimal   `json:"total_amount"`
	StartDate            string            `json:"start_date"`
	PerPaymentAmount     *decimal.Decimal  `json:"per_payment_amount,omitempty"`
	IntervalMonths       int               `json:"interval_months,omitempty"`
	CyclePattern         []decimal.Decimal `json:"cycle_pattern,omitempty"`
	FirstInstallmentKind string            `json:"first_installment_kind,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plan configurations to Go structs.
type PlanFactory struct{}

func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParseConfig parses and validates a JSON plan configuration.
func (f *PlanFactory) ParseConfig(jsonStr string) (plan.PlanConfiguration, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return plan.PlanConfiguration{}, fmt.Errorf("failed to parse plan JSON: %w",
			&plan.ConfigurationError{Field: "json", Reason: err.Error()})
	}
	return f.FromJSON(pj)
}

// FromJSON converts pj and validates the result.
func (f *PlanFactory) FromJSON(pj PlanJSON) (plan.PlanConfiguration, error) {
	cfg := plan.PlanConfiguration{
		Kind:                 plan.PlanKind(pj.Kind),
		TotalAmount:          pj.TotalAmount,
		IntervalMonths:       pj.IntervalMonths,
		CyclePattern:         pj.CyclePattern,
		FirstInstallmentKind: plan.InstallmentKind(pj.FirstInstallmentKind),
	}
	if pj.PerPaymentAmount != nil {
		cfg.PerPaymentAmount = *pj.PerPaymentAmount
	}

	if pj.StartDate == "" {
		return plan.PlanConfiguration{}, &plan.ConfigurationError{Field: "start_date", Reason: "is required"}
	}
	start, err := plan.ParseDate(pj.StartDate)
	if err != nil {
		return plan.PlanConfiguration{}, &plan.ConfigurationError{Field: "start_date", Reason: err.Error()}
	}
	cfg.StartDate = start

	if err := cfg.Validate(); err != nil {
		return plan.PlanConfiguration{}, err
	}
	return cfg, nil
}

// ToJSON is the inverse of FromJSON.
func (f *PlanFactory) ToJSON(cfg plan.PlanConfiguration) PlanJSON {
	pj := PlanJSON{
		Kind:                 string(cfg.Kind),
		TotalAmount:          cfg.TotalAmount,
		StartDate:            cfg.StartDate.String(),
		IntervalMonths:       cfg.IntervalMonths,
		CyclePattern:         cfg.CyclePattern,
		FirstInstallmentKind: string(cfg.FirstInstallmentKind),
	}
	if !cfg.PerPaymentAmount.IsZero() {
		amt := cfg.PerPaymentAmount
		pj.PerPaymentAmount = &amt
	}
	return pj
}

// Marshal renders cfg in the JSON schema above.
func (f *PlanFactory) Marshal(cfg plan.PlanConfiguration) (string, error) {
	b, err := json.Marshal(f.ToJSON(cfg))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// =============================================================================
// PRESETS
// =============================================================================

// DepositThenMonthlyJSON is a common vendor arrangement: a deposit up front
// followed by equal monthly payments.
func DepositThenMonthlyJSON(total, monthly, startDate string) string {
	return fmt.Sprintf(`{
		"kind": "monthly_recurring",
		"total_amount": %q,
		"start_date": %q,
		"per_payment_amount": %q,
		"first_installment_kind": "deposit"
	}`, total, startDate, monthly)
}

// SingleRetainerJSON is one payment of the full amount, tagged as a retainer.
func SingleRetainerJSON(total, dueDate string) string {
	return fmt.Sprintf(`{
		"kind": "individual",
		"total_amount": %q,
		"start_date": %q,
		"first_installment_kind": "retainer"
	}`, total, dueDate)
}

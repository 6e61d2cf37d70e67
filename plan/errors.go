/*
errors.go - Centralized error types for the plan engine

ERROR CATEGORIES:
  1. Configuration errors - A PlanConfiguration that cannot produce a schedule
  2. Settlement errors - A payment that cannot be recorded
  3. Transition errors - An illegal paid/unpaid change
  4. Store errors - Missing plans/installments, persistence failures

Unapplied excess is NOT an error. It is reported on SettlementResult so
the caller decides what to do with the money.

USAGE:
  if errors.Is(err, plan.ErrInvalidSettlement) {
      var se *plan.InvalidSettlementError
      errors.As(err, &se)
  }
*/
package plan

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConfiguration is the root of every ConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid plan configuration")

	// ErrInvalidSettlement is the root of every InvalidSettlementError.
	ErrInvalidSettlement = errors.New("invalid settlement")

	// Settlement rejection reasons, joined with ErrInvalidSettlement.
	ErrInstallmentNotInPlan = errors.New("installment does not belong to plan")
	ErrAlreadyPaid          = errors.New("installment already paid")
	ErrNonPositivePayment   = errors.New("payment amount must be positive")

	// ErrInvalidTransition is returned for an illegal state machine move.
	ErrInvalidTransition = errors.New("invalid installment transition")

	ErrPlanNotFound        = errors.New("plan not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrDuplicatePlan       = errors.New("plan already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError names the offending field of a PlanConfiguration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid plan configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

// InvalidSettlementError explains why a settlement was rejected.
// errors.Is matches both ErrInvalidSettlement and the specific Reason.
type InvalidSettlementError struct {
	PlanID        PlanID
	InstallmentID InstallmentID
	Reason        error
}

func (e *InvalidSettlementError) Error() string {
	return fmt.Sprintf("invalid settlement on plan %s installment %s: %v", e.PlanID, e.InstallmentID, e.Reason)
}

func (e *InvalidSettlementError) Unwrap() []error {
	return []error{ErrInvalidSettlement, e.Reason}
}

// TransitionError is an illegal move between installment states.
type TransitionError struct {
	InstallmentID InstallmentID
	From          State
	To            State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("installment %s: cannot move from %s to %s", e.InstallmentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrInvalidSettlement) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsConflict returns true if the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicatePlan)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrInstallmentNotFound) ||
		errors.Is(err, ErrInstallmentNotInPlan)
}

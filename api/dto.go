/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Amounts are decimal strings ("1250.50"), dates are "YYYY-MM-DD".
  No currency symbols or locale formatting; that belongs to the client.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan-engine/factory"
	"github.com/warp/payplan-engine/plan"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreatePlanRequest is the request to generate and store a plan.
type CreatePlanRequest struct {
	Name   string           `json:"name"`
	Config factory.PlanJSON `json:"config"`
}

// PreviewRequest asks for a schedule without storing it.
type PreviewRequest struct {
	Config factory.PlanJSON `json:"config"`
}

// SettleRequest records a payment against one installment.
type SettleRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// LoadScenarioRequest loads a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type PlanDTO struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Config       factory.PlanJSON `json:"config"`
	Installments []InstallmentDTO `json:"installments"`
	CreatedAt    string           `json:"created_at,omitempty"`
}

type PlanRecordDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Kind             string `json:"kind"`
	InstallmentCount int    `json:"installment_count"`
	CreatedAt        string `json:"created_at"`
}

type InstallmentDTO struct {
	ID          string          `json:"id,omitempty"`
	Order       int             `json:"order"`
	TotalInPlan int             `json:"total_in_plan"`
	Label       string          `json:"label"` // "2 of 5"
	DueDate     string          `json:"due_date"`
	DueAmount   decimal.Decimal `json:"due_amount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	Paid        bool            `json:"paid"`
	PaidAt      *string         `json:"paid_at,omitempty"`
	Kind        string          `json:"kind"`
	Notes       string          `json:"notes,omitempty"`
	Carryover   bool            `json:"carryover"`
}

type SummaryDTO struct {
	PlanID           string          `json:"plan_id"`
	AsOf             string          `json:"as_of"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	AmountRemaining  decimal.Decimal `json:"amount_remaining"`
	PercentPaid      string          `json:"percent_paid"`
	InstallmentCount int             `json:"installment_count"`
	PaidCount        int             `json:"paid_count"`
	OverdueCount     int             `json:"overdue_count"`
	OverdueAmount    decimal.Decimal `json:"overdue_amount"`
	NextPayment      *InstallmentDTO `json:"next_payment,omitempty"`
	IsComplete       bool            `json:"is_complete"`
}

type SettlementDTO struct {
	Outcome               string           `json:"outcome"`
	UpdatedInstallment    InstallmentDTO   `json:"updated_installment"`
	CarryoverInstallment  *InstallmentDTO  `json:"carryover_installment,omitempty"`
	ModifiedInstallments  []InstallmentDTO `json:"modified_installments"`
	DeletedInstallmentIDs []string         `json:"deleted_installment_ids"`
	IsValid               bool             `json:"is_valid"`
	UnappliedExcess       decimal.Decimal  `json:"unapplied_excess"`
	ErrorMessage          string           `json:"error_message,omitempty"`
}

type OverdueDTO struct {
	PlanID        string          `json:"plan_id"`
	Name          string          `json:"name"`
	OverdueCount  int             `json:"overdue_count"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toInstallmentDTO(inst plan.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		ID:          string(inst.ID),
		Order:       inst.Order,
		TotalInPlan: inst.TotalInPlan,
		Label:       fmt.Sprintf("%d of %d", inst.Order, inst.TotalInPlan),
		DueDate:     inst.DueDate.String(),
		DueAmount:   inst.DueAmount,
		AmountPaid:  inst.AmountPaid,
		Paid:        inst.Paid,
		Kind:        string(inst.Kind),
		Notes:       inst.Notes,
		Carryover:   inst.IsCarryover(),
	}
	if inst.PaidAt != nil {
		s := inst.PaidAt.UTC().Format(time.RFC3339)
		dto.PaidAt = &s
	}
	return dto
}

func toInstallmentDTOs(insts []plan.Installment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(insts))
	for i, inst := range insts {
		dtos[i] = toInstallmentDTO(inst)
	}
	return dtos
}

func toSummaryDTO(s plan.PlanSummary) SummaryDTO {
	dto := SummaryDTO{
		PlanID:           string(s.PlanID),
		AsOf:             s.AsOf.String(),
		TotalAmount:      s.TotalAmount,
		AmountPaid:       s.AmountPaid,
		AmountRemaining:  s.AmountRemaining,
		PercentPaid:      s.PercentPaid.StringFixed(2),
		InstallmentCount: s.InstallmentCount,
		PaidCount:        s.PaidCount,
		OverdueCount:     s.OverdueCount,
		OverdueAmount:    s.OverdueAmount,
		IsComplete:       s.IsComplete,
	}
	if s.NextPayment != nil {
		next := toInstallmentDTO(*s.NextPayment)
		dto.NextPayment = &next
	}
	return dto
}

func toSettlementDTO(r plan.SettlementResult) SettlementDTO {
	dto := SettlementDTO{
		Outcome:               r.Outcome(),
		UpdatedInstallment:    toInstallmentDTO(r.UpdatedInstallment),
		ModifiedInstallments:  toInstallmentDTOs(r.ModifiedInstallments),
		DeletedInstallmentIDs: make([]string, len(r.DeletedInstallmentIDs)),
		IsValid:               r.IsValid,
		UnappliedExcess:       r.UnappliedExcess,
		ErrorMessage:          r.ErrorMessage,
	}
	for i, id := range r.DeletedInstallmentIDs {
		dto.DeletedInstallmentIDs[i] = string(id)
	}
	if r.CarryoverInstallment != nil {
		c := toInstallmentDTO(*r.CarryoverInstallment)
		dto.CarryoverInstallment = &c
	}
	return dto
}

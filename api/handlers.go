/*
handlers.go - HTTP API handlers for payment plans

ENDPOINTS:
  Plans:
    GET    /api/plans                  List plans
    POST   /api/plans                  Generate and store a plan
    POST   /api/plans/preview          Generate a schedule without storing it
    GET    /api/plans/{id}             Plan with installments
    DELETE /api/plans/{id}             Delete plan
    GET    /api/plans/{id}/summary     Rollup (?today=YYYY-MM-DD)

  Installments:
    POST   /api/plans/{id}/installments/{iid}/settle  Record a payment
    POST   /api/plans/{id}/installments/{iid}/unpay   Reset to unpaid

  Reports:
    GET    /api/overdue                Plans with overdue installments

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (factory for configs)
  3. Call plan.Service
  4. Serialize response

ERROR HANDLING:
  - 400: Invalid configuration, invalid payment amount, bad JSON
  - 404: Plan or installment not found
  - 409: Installment already paid / already unpaid
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payplan-engine/factory"
	"github.com/warp/payplan-engine/plan"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service     *plan.Service
	PlanFactory *factory.PlanFactory
	Logger      *slog.Logger

	// Today resolves "today" when a request does not pass ?today=.
	Today func() plan.Date

	mu              sync.Mutex
	currentScenario string
}

func NewHandler(svc *plan.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:     svc,
		PlanFactory: factory.NewPlanFactory(),
		Logger:      logger.With("component", "api"),
		Today:       plan.Today,
	}
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all plan headers.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.ListPlans(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = PlanRecordDTO{
			ID:               string(rec.ID),
			Name:             rec.Name,
			Kind:             string(rec.Kind),
			InstallmentCount: rec.InstallmentCount,
			CreatedAt:        rec.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan generates a schedule from the config and stores it.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := h.PlanFactory.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan configuration", err)
		return
	}

	p, err := h.Service.CreatePlan(r.Context(), req.Name, cfg)
	if err != nil {
		h.writeServiceError(w, "Failed to create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toPlanDTO(p))
}

// PreviewPlan returns the schedule a config would produce.
func (h *Handler) PreviewPlan(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cfg, err := h.PlanFactory.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan configuration", err)
		return
	}
	installments, err := h.Service.Preview(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan configuration", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTOs(installments))
}

// GetPlan returns one plan with its installments.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetPlan(r.Context(), planIDParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPlanDTO(p))
}

// DeletePlan removes a plan and its installments.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeletePlan(r.Context(), planIDParam(r)); err != nil {
		h.writeServiceError(w, "Failed to delete plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary returns the plan rollup as of ?today= (default: server date).
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	today, ok := h.todayParam(w, r)
	if !ok {
		return
	}

	summary, err := h.Service.Summary(r.Context(), planIDParam(r), today)
	if err != nil {
		h.writeServiceError(w, "Failed to summarize plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// INSTALLMENT HANDLERS
// =============================================================================

// SettleInstallment records a payment against one installment.
// POST /api/plans/{id}/installments/{iid}/settle
func (h *Handler) SettleInstallment(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Service.RecordPayment(r.Context(), planIDParam(r), installmentIDParam(r), req.Amount)
	if err != nil {
		h.writeServiceError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(result))
}

// UnpayInstallment resets a paid installment to unpaid.
// POST /api/plans/{id}/installments/{iid}/unpay
func (h *Handler) UnpayInstallment(w http.ResponseWriter, r *http.Request) {
	inst, err := h.Service.MarkUnpaid(r.Context(), planIDParam(r), installmentIDParam(r))
	if err != nil {
		h.writeServiceError(w, "Failed to mark installment unpaid", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTO(inst))
}

// =============================================================================
// REPORTS
// =============================================================================

// ListOverdue returns plans with installments due before ?today=.
func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	today, ok := h.todayParam(w, r)
	if !ok {
		return
	}

	entries, err := h.Service.OverdueReport(r.Context(), today)
	if err != nil {
		h.writeServiceError(w, "Failed to build overdue report", err)
		return
	}

	dtos := make([]OverdueDTO, len(entries))
	for i, e := range entries {
		dtos[i] = OverdueDTO{
			PlanID:        string(e.PlanID),
			Name:          e.Name,
			OverdueCount:  e.Summary.OverdueCount,
			OverdueAmount: e.Summary.OverdueAmount,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func planIDParam(r *http.Request) plan.PlanID {
	return plan.PlanID(chi.URLParam(r, "id"))
}

func installmentIDParam(r *http.Request) plan.InstallmentID {
	return plan.InstallmentID(chi.URLParam(r, "iid"))
}

func (h *Handler) todayParam(w http.ResponseWriter, r *http.Request) (plan.Date, bool) {
	raw := r.URL.Query().Get("today")
	if raw == "" {
		return h.Today(), true
	}
	today, err := plan.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today parameter", err)
		return plan.Date{}, false
	}
	return today, true
}

func (h *Handler) toPlanDTO(p *plan.Plan) PlanDTO {
	return PlanDTO{
		ID:           string(p.ID),
		Name:         p.Name,
		Config:       h.PlanFactory.ToJSON(p.Config),
		Installments: toInstallmentDTOs(p.Installments),
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}
}

// writeServiceError maps plan errors onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case plan.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case plan.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case plan.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

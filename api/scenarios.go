/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Populates the store with realistic wedding vendor plans so the frontend
  and manual testing have something to show. Each scenario creates plans
  through plan.Service and records a few payments, so every demo state is
  reachable through the normal settlement path.

AVAILABLE SCENARIOS:
  venue-deposit:     Deposit + monthly plan, first payment exact
  florist-partial:   Single retainer, underpaid, leaving a carryover
  caterer-overpay:   Quarterly plan, first payment covers later quarters
  photographer-cycle: Cyclical plan with an uneven payment pattern

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "florist-partial"}

NOTE:
  Scenarios add plans; they do not clear existing ones.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payplan-engine/factory"
	"github.com/warp/payplan-engine/plan"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "venue-deposit",
		Name:        "Venue Deposit",
		Description: "Deposit followed by monthly payments; first payment made in full",
	},
	{
		ID:          "florist-partial",
		Name:        "Florist Partial Payment",
		Description: "Single retainer paid short, the shortfall carried over a month",
	},
	{
		ID:          "caterer-overpay",
		Name:        "Caterer Overpayment",
		Description: "Quarterly plan where the first payment absorbs later quarters",
	},
	{
		ID:          "photographer-cycle",
		Name:        "Photographer Cycle",
		Description: "Cyclical plan repeating a 1000/500/500 pattern",
	},
}

type scenarioStep struct {
	name     string
	config   string
	payments []string // settled in order against the earliest unpaid installment
}

var scenarioSteps = map[string][]scenarioStep{
	"venue-deposit": {{
		name:     "Lakeside Venue",
		config:   factory.DepositThenMonthlyJSON("12000", "2000", "2025-01-15"),
		payments: []string{"2000"},
	}},
	"florist-partial": {{
		name:     "Bloom & Stem Florist",
		config:   factory.SingleRetainerJSON("800", "2025-03-01"),
		payments: []string{"500"},
	}},
	"caterer-overpay": {{
		name: "Harvest Table Catering",
		config: `{"kind":"fixed_interval","total_amount":"9000","start_date":"2025-02-01",
			"per_payment_amount":"1500","interval_months":3,"first_installment_kind":"deposit"}`,
		payments: []string{"4500"},
	}},
	"photographer-cycle": {{
		name: "Golden Hour Photography",
		config: `{"kind":"cyclical","total_amount":"3200","start_date":"2025-04-10",
			"cycle_pattern":["1000","500","500"]}`,
	}},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario creates the plans of a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	steps, ok := scenarioSteps[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	plans, err := h.loadScenario(r.Context(), steps)
	if err != nil {
		h.writeServiceError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = h.toPlanDTO(p)
	}
	writeJSON(w, http.StatusCreated, dtos)
}

func (h *Handler) loadScenario(ctx context.Context, steps []scenarioStep) ([]*plan.Plan, error) {
	var plans []*plan.Plan
	for _, step := range steps {
		cfg, err := h.PlanFactory.ParseConfig(step.config)
		if err != nil {
			return nil, fmt.Errorf("scenario plan %q: %w", step.name, err)
		}
		p, err := h.Service.CreatePlan(ctx, step.name, cfg)
		if err != nil {
			return nil, err
		}

		for _, raw := range step.payments {
			unpaid := p.Unpaid()
			if len(unpaid) == 0 {
				break
			}
			if _, err := h.Service.RecordPayment(ctx, p.ID, unpaid[0].ID, decimal.RequireFromString(raw)); err != nil {
				return nil, err
			}
			if p, err = h.Service.GetPlan(ctx, p.ID); err != nil {
				return nil, err
			}
		}
		plans = append(plans, p)
	}
	return plans, nil
}

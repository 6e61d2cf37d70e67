// Package store provides in-memory plan.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/payplan-engine/plan"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	plans map[plan.PlanID]*plan.Plan
}

func NewMemory() *Memory {
	return &Memory{plans: make(map[plan.PlanID]*plan.Plan)}
}

func (m *Memory) SavePlan(_ context.Context, p plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePlanLocked(p)
}

func (m *Memory) savePlanLocked(p plan.Plan) error {
	if _, ok := m.plans[p.ID]; ok {
		return plan.ErrDuplicatePlan
	}
	stored := p.Clone()
	plan.SortInstallments(stored.Installments)
	m.plans[p.ID] = stored
	return nil
}

func (m *Memory) LoadPlan(_ context.Context, id plan.PlanID) (*plan.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadPlanLocked(id)
}

func (m *Memory) loadPlanLocked(id plan.PlanID) (*plan.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, plan.ErrPlanNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) ListPlans(_ context.Context) ([]plan.PlanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPlansLocked(), nil
}

func (m *Memory) listPlansLocked() []plan.PlanRecord {
	records := make([]plan.PlanRecord, 0, len(m.plans))
	for _, p := range m.plans {
		records = append(records, plan.PlanRecord{
			ID:               p.ID,
			Name:             p.Name,
			Kind:             p.Config.Kind,
			InstallmentCount: len(p.Installments),
			CreatedAt:        p.CreatedAt,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

func (m *Memory) DeletePlan(_ context.Context, id plan.PlanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[id]; !ok {
		return plan.ErrPlanNotFound
	}
	delete(m.plans, id)
	return nil
}

func (m *Memory) InsertInstallment(_ context.Context, planID plan.PlanID, inst plan.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(planID, inst)
}

func (m *Memory) insertLocked(planID plan.PlanID, inst plan.Installment) error {
	p, ok := m.plans[planID]
	if !ok {
		return plan.ErrPlanNotFound
	}
	p.Installments = append(p.Installments, inst)
	plan.SortInstallments(p.Installments)
	return nil
}

func (m *Memory) UpdateInstallment(_ context.Context, planID plan.PlanID, inst plan.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(planID, inst)
}

func (m *Memory) updateLocked(planID plan.PlanID, inst plan.Installment) error {
	p, ok := m.plans[planID]
	if !ok {
		return plan.ErrPlanNotFound
	}
	for i := range p.Installments {
		if p.Installments[i].ID == inst.ID {
			p.Installments[i] = inst
			plan.SortInstallments(p.Installments)
			return nil
		}
	}
	return plan.ErrInstallmentNotFound
}

func (m *Memory) DeleteInstallment(_ context.Context, planID plan.PlanID, id plan.InstallmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(planID, id)
}

func (m *Memory) deleteLocked(planID plan.PlanID, id plan.InstallmentID) error {
	p, ok := m.plans[planID]
	if !ok {
		return plan.ErrPlanNotFound
	}
	for i := range p.Installments {
		if p.Installments[i].ID == id {
			p.Installments = append(p.Installments[:i], p.Installments[i+1:]...)
			return nil
		}
	}
	return plan.ErrInstallmentNotFound
}

func (m *Memory) SetTotalInPlan(_ context.Context, planID plan.PlanID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setTotalLocked(planID, n)
}

func (m *Memory) setTotalLocked(planID plan.PlanID, n int) error {
	p, ok := m.plans[planID]
	if !ok {
		return plan.ErrPlanNotFound
	}
	for i := range p.Installments {
		p.Installments[i].TotalInPlan = n
	}
	return nil
}

// WithTx executes fn against a view of the store. Writes go straight to the
// maps; on error the pre-transaction snapshot is restored.
func (m *Memory) WithTx(_ context.Context, fn func(plan.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.plans = snapshot
		return err
	}
	return nil
}

func (m *Memory) snapshot() map[plan.PlanID]*plan.Plan {
	cp := make(map[plan.PlanID]*plan.Plan, len(m.plans))
	for id, p := range m.plans {
		cp[id] = p.Clone()
	}
	return cp
}

// txView is the plan.Store handed to WithTx callbacks. The parent lock is
// already held.
type txView struct {
	parent *Memory
}

func (tv *txView) SavePlan(_ context.Context, p plan.Plan) error {
	return tv.parent.savePlanLocked(p)
}

func (tv *txView) LoadPlan(_ context.Context, id plan.PlanID) (*plan.Plan, error) {
	return tv.parent.loadPlanLocked(id)
}

func (tv *txView) ListPlans(_ context.Context) ([]plan.PlanRecord, error) {
	return tv.parent.listPlansLocked(), nil
}

func (tv *txView) DeletePlan(_ context.Context, id plan.PlanID) error {
	if _, ok := tv.parent.plans[id]; !ok {
		return plan.ErrPlanNotFound
	}
	delete(tv.parent.plans, id)
	return nil
}

func (tv *txView) InsertInstallment(_ context.Context, planID plan.PlanID, inst plan.Installment) error {
	return tv.parent.insertLocked(planID, inst)
}

func (tv *txView) UpdateInstallment(_ context.Context, planID plan.PlanID, inst plan.Installment) error {
	return tv.parent.updateLocked(planID, inst)
}

func (tv *txView) DeleteInstallment(_ context.Context, planID plan.PlanID, id plan.InstallmentID) error {
	return tv.parent.deleteLocked(planID, id)
}

func (tv *txView) SetTotalInPlan(_ context.Context, planID plan.PlanID, n int) error {
	return tv.parent.setTotalLocked(planID, n)
}

package plan

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PlanSummary is a read-only rollup of a plan at a point in time.
// It holds no state of its own; Summarize rebuilds it from the installments.
type PlanSummary struct {
	PlanID           PlanID
	AsOf             Date
	TotalAmount      decimal.Decimal
	AmountPaid       decimal.Decimal
	AmountRemaining  decimal.Decimal
	PercentPaid      decimal.Decimal
	InstallmentCount int
	PaidCount        int
	OverdueCount     int
	OverdueAmount    decimal.Decimal
	NextPayment      *Installment
	IsComplete       bool
}

// Summarize computes the summary of p as seen on today.
// An installment is overdue when unpaid and due strictly before today.
func Summarize(p *Plan, today Date) PlanSummary {
	s := PlanSummary{
		PlanID:           p.ID,
		AsOf:             today,
		TotalAmount:      decimal.Zero,
		AmountPaid:       decimal.Zero,
		PercentPaid:      decimal.Zero,
		OverdueAmount:    decimal.Zero,
		InstallmentCount: len(p.Installments),
		IsComplete:       true,
	}

	for _, inst := range p.Installments {
		s.TotalAmount = s.TotalAmount.Add(inst.DueAmount)
		if inst.Paid {
			s.AmountPaid = s.AmountPaid.Add(inst.AmountPaid)
			s.PaidCount++
			continue
		}

		s.IsComplete = false
		if inst.IsOverdue(today) {
			s.OverdueCount++
			s.OverdueAmount = s.OverdueAmount.Add(inst.DueAmount)
		}
		if s.NextPayment == nil || earlier(inst, *s.NextPayment) {
			next := inst
			s.NextPayment = &next
		}
	}

	s.AmountRemaining = s.TotalAmount.Sub(s.AmountPaid)
	if !s.TotalAmount.IsZero() {
		s.PercentPaid = s.AmountPaid.Div(s.TotalAmount).Mul(hundred)
	}
	return s
}

func earlier(a, b Installment) bool {
	if !a.DueDate.Equal(b.DueDate) {
		return a.DueDate.Before(b.DueDate)
	}
	return a.Order < b.Order
}

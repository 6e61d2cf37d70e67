// Package metrics exposes Prometheus counters for plan activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Prometheus metric names.
const (
	MetricPlansCreatedTotal    = "payplan_plans_created_total"
	MetricSettlementsTotal     = "payplan_settlements_total"
	MetricUnappliedExcessTotal = "payplan_unapplied_excess_total"
	MetricPersistFailuresTotal = "payplan_settlement_persist_failures_total"
)

// Recorder records plan metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	plansCreated    prometheus.Counter
	settlements     *prometheus.CounterVec
	unappliedExcess prometheus.Counter
	persistFailures prometheus.Counter
}

// NewRecorder creates the counters and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		plansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPlansCreatedTotal,
			Help: "Payment plans generated and stored.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSettlementsTotal,
			Help: "Settlements by outcome (exact, underpaid, overpaid, invalid).",
		}, []string{"outcome"}),
		unappliedExcess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricUnappliedExcessTotal,
			Help: "Sum of overpayment that could not be absorbed by any installment.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPersistFailuresTotal,
			Help: "Settlement results discarded because the store write failed.",
		}),
	}
	reg.MustRegister(r.plansCreated, r.settlements, r.unappliedExcess, r.persistFailures)
	return r
}

func (r *Recorder) PlanCreated() {
	if r == nil {
		return
	}
	r.plansCreated.Inc()
}

func (r *Recorder) Settlement(outcome string, unapplied decimal.Decimal) {
	if r == nil {
		return
	}
	r.settlements.WithLabelValues(outcome).Inc()
	if unapplied.IsPositive() {
		r.unappliedExcess.Add(unapplied.InexactFloat64())
	}
}

func (r *Recorder) PersistFailure() {
	if r == nil {
		return
	}
	r.persistFailures.Inc()
}

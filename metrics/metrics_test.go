package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.PlanCreated()
	r.Settlement("overpaid", decimal.RequireFromString("12.50"))
	r.Settlement("exact", decimal.Zero)
	r.PersistFailure()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.plansCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.settlements.WithLabelValues("overpaid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.settlements.WithLabelValues("exact")))
	assert.Equal(t, 12.5, testutil.ToFloat64(r.unappliedExcess))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.persistFailures))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.PlanCreated()
		r.Settlement("exact", decimal.Zero)
		r.PersistFailure()
	})
}

package plan_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payplan-engine/plan"
)

func TestDate_AddMonths(t *testing.T) {
	tests := []struct {
		from   plan.Date
		months int
		want   string
	}{
		{date(2025, time.January, 15), 1, "2025-02-15"},
		{date(2025, time.January, 31), 1, "2025-02-28"},
		{date(2024, time.January, 31), 1, "2024-02-29"},
		{date(2025, time.March, 31), 1, "2025-04-30"},
		{date(2025, time.November, 30), 3, "2026-02-28"},
		{date(2025, time.December, 1), 1, "2026-01-01"},
		{date(2025, time.May, 31), -3, "2025-02-28"},
		{date(2025, time.May, 31), 0, "2025-05-31"},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"+"+tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.AddMonths(tt.months).String())
		})
	}
}

func TestDate_Comparisons(t *testing.T) {
	a := date(2025, time.March, 1)
	b := plan.DateOf(time.Date(2025, time.March, 1, 23, 59, 0, 0, time.UTC))

	assert.True(t, a.Equal(b), "time of day is ignored")
	assert.True(t, a.BeforeOrEqual(b))
	assert.True(t, a.AfterOrEqual(b))
	assert.True(t, a.Before(a.AddDays(1)))
	assert.Equal(t, 31, plan.DaysBetween(a, date(2025, time.April, 1)))
}

func TestDate_ParseAndJSON(t *testing.T) {
	d, err := plan.ParseDate("2025-04-10")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.April, 10), d)

	_, err = plan.ParseDate("04/10/2025")
	assert.Error(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-04-10"`, string(b))

	var back plan.Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(d))
}

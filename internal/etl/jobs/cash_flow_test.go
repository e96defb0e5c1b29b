package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/database"
)

func TestCashFlowTransformBuildsMonthlyRecords(t *testing.T) {
	job := NewCashFlow(testOrg(), &fakeSource{}, 12)

	records, err := job.Transform([]database.Row{
		{"gl_year": 2026, "gl_month": 7, "account_class": "1000", "net_movement": 15000.0},
		{"gl_year": 2026, "gl_month": 7, "account_class": "1100", "net_movement": 8000.0},
		{"gl_year": 2026, "gl_month": 7, "account_class": "2000", "net_movement": -3000.0},
		{"gl_year": 2026, "gl_month": 8, "account_class": "1000", "net_movement": -60000.0},
		{"gl_year": 2026, "gl_month": 8, "account_class": "1200", "net_movement": 4000.0},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	july := records[0]
	assert.Equal(t, 42, july["org_id"])
	assert.Equal(t, 2026, july["year"])
	assert.Equal(t, 7, july["month"])
	assert.Equal(t, 15000.0, july["cash_balance"])
	assert.Equal(t, 15000.0, july["operating_cash_flow"])
	assert.Equal(t, 8000.0, july["accounts_receivable"])
	assert.Equal(t, -3000.0, july["accounts_payable"])
	assert.Equal(t, "healthy", july["health_status"])

	august := records[1]
	assert.Equal(t, -60000.0, august["operating_cash_flow"])
	assert.Equal(t, 4000.0, august["inventory_value"])
	assert.Equal(t, "critical", august["health_status"])
}

func TestCashFlowTransformSkipsMalformedMonths(t *testing.T) {
	job := NewCashFlow(testOrg(), &fakeSource{}, 12)

	records, err := job.Transform([]database.Row{
		{"gl_year": 0, "gl_month": 3, "account_class": "1000", "net_movement": 100.0},
		{"gl_year": 2026, "gl_month": 13, "account_class": "1000", "net_movement": 100.0},
	})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHealthStatusThresholds(t *testing.T) {
	assert.Equal(t, "healthy", healthStatus(1))
	assert.Equal(t, "healthy", healthStatus(250000))
	assert.Equal(t, "warning", healthStatus(0))
	assert.Equal(t, "warning", healthStatus(-10000))
	assert.Equal(t, "warning", healthStatus(-49999.99))
	assert.Equal(t, "critical", healthStatus(-50000))
	assert.Equal(t, "critical", healthStatus(-250000))
}

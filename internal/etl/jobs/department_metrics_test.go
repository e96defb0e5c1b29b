package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/database"
)

func TestDepartmentMetricsSkipsFailedDepartments(t *testing.T) {
	src := &fakeSource{
		responses: map[string][]database.Row{
			"acme.WO":             {{"open_work_orders": 12, "aged_over_30": 3, "avg_age_days": 14.5, "labor_hours_billed": 480.0}},
			"acme.RentalContract": {{"active_contracts": 9, "monthly_rate_total": 27000.0}},
			"acme.GLDetail":       {{"mtd_journal_lines": 340, "mtd_debits": 88000.0, "mtd_credits": 88000.0, "unposted_entries": 2}},
			"acme.ARDetail":       {{"ar_total": 152000.0, "ar_current": 90000.0, "ar_over_30": 40000.0, "ar_over_60": 15000.0, "ar_over_90": 7000.0}},
			"acme.Equipment":      {{"units_in_stock": 31, "stock_value": 910000.0, "aged_over_180": 4}},
		},
		errors: map[string]error{
			"acme.Parts": errors.New("table offline"),
		},
	}

	job := NewDepartmentMetrics(testOrg(), src)
	job.now = func() time.Time { return time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC) }

	rows, err := job.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 5)

	departments := make([]string, 0, len(rows))
	for _, row := range rows {
		departments = append(departments, row["department"].(string))
	}
	assert.Equal(t, []string{"service", "rental", "accounting", "financial", "equipment"}, departments)

	service := rows[0]["metrics"].(map[string]interface{})
	assert.Equal(t, 12, service["open_work_orders"])
	assert.Equal(t, 3, service["aged_over_30"])
	assert.Equal(t, 14.5, service["avg_age_days"])

	accounting := rows[2]["metrics"].(map[string]interface{})
	assert.Equal(t, 340, accounting["mtd_journal_lines"])
	assert.Equal(t, 2, accounting["unposted_entries"])

	financial := rows[3]["metrics"].(map[string]interface{})
	assert.Equal(t, 152000.0, financial["ar_total"])
	assert.Equal(t, 7000.0, financial["ar_over_90"])
}

func TestDepartmentMetricsFailsOnlyWhenAllFail(t *testing.T) {
	down := errors.New("source down")
	src := &fakeSource{
		errors: map[string]error{
			"acme.WO":             down,
			"acme.Parts":          down,
			"acme.RentalContract": down,
			"acme.GLDetail":       down,
			"acme.ARDetail":       down,
			"acme.Equipment":      down,
		},
	}

	job := NewDepartmentMetrics(testOrg(), src)
	_, err := job.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all departments failed")
}

func TestDepartmentMetricsTransformEncodesMetrics(t *testing.T) {
	job := NewDepartmentMetrics(testOrg(), &fakeSource{})
	snapshotAt := time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)

	records, err := job.Transform([]database.Row{
		{
			"department":  "parts",
			"snapshot_at": snapshotAt,
			"metrics":     map[string]interface{}{"sku_count": 1200, "stockouts": 14},
		},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, 42, record["org_id"])
	assert.Equal(t, "parts", record["department"])
	assert.Equal(t, snapshotAt, record["snapshot_at"])
	assert.JSONEq(t, `{"sku_count":1200,"stockouts":14}`, record["metrics"].(string))
}

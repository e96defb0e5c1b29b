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

func TestFiscalYearStart(t *testing.T) {
	// November fiscal year: December 2026 belongs to FY starting Nov 2026.
	start := fiscalYearStart(time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC), 11)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), start)

	// August 2026 belongs to the FY that started Nov 2025.
	start = fiscalYearStart(time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), 11)
	assert.Equal(t, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), start)

	// Calendar-year tenants.
	start = fiscalYearStart(time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), 1)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), start)

	// Out-of-range months fall back to November.
	start = fiscalYearStart(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), 0)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestCEOSnapshotExtractAssemblesSections(t *testing.T) {
	src := &fakeSource{
		responses: map[string][]database.Row{
			"mtd_revenue": {{"mtd_revenue": 120000.0, "ytd_revenue": 2400000.0}},
			"open_count":  {{"open_count": 12, "age_0_30": 8, "age_31_60": 3, "age_over_60": 1}},
			"trend_year":  {{"trend_year": 2026, "trend_month": 8, "revenue": 120000.0}},
			"TOP 10":      {{"customer_name": "Acme Crane", "revenue": 310000.0}},
			"quote_count": {{"quote_count": 17, "quote_value": 450000.0}},
		},
	}

	job := NewCEOSnapshot(testOrg(), src)
	job.now = func() time.Time { return time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC) }

	rows, err := job.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	raw := rows[0]
	assert.Equal(t, 120000.0, raw["mtd_revenue"])
	assert.Equal(t, 2400000.0, raw["ytd_revenue"])
	assert.Equal(t, 12, raw["open_work_orders"])
	assert.Equal(t, map[string]int{"0_30": 8, "31_60": 3, "over_60": 1}, raw["wo_aging"])
	assert.Equal(t, 17, raw["quote_count"])
	assert.Equal(t, 450000.0, raw["quote_value"])
}

func TestCEOSnapshotFailsWhenAnySectionFails(t *testing.T) {
	// Revenue and quotes would succeed, but the work-order query does not:
	// the whole extraction fails rather than landing a partial snapshot.
	src := &fakeSource{
		responses: map[string][]database.Row{
			"mtd_revenue": {{"mtd_revenue": 120000.0, "ytd_revenue": 2400000.0}},
			"quote_count": {{"quote_count": 17, "quote_value": 450000.0}},
		},
		errors: map[string]error{
			"ClosedDate IS NULL": errors.New("work order table locked"),
		},
	}

	job := NewCEOSnapshot(testOrg(), src)
	job.now = func() time.Time { return time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC) }

	rows, err := job.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open work orders")
	assert.Contains(t, err.Error(), "work order table locked")
	assert.Nil(t, rows)
}

func TestCEOSnapshotFailsOnFirstSectionError(t *testing.T) {
	src := &fakeSource{
		errors: map[string]error{"mtd_revenue": errors.New("login timeout")},
	}

	job := NewCEOSnapshot(testOrg(), src)
	_, err := job.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract revenue")
}

func TestCEOSnapshotTransformEncodesJSONFields(t *testing.T) {
	job := NewCEOSnapshot(testOrg(), &fakeSource{})
	snapshotAt := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)

	records, err := job.Transform([]database.Row{{
		"snapshot_at":         snapshotAt,
		"mtd_revenue":         120000.0,
		"ytd_revenue":         2400000.0,
		"open_work_orders":    12,
		"wo_aging":            map[string]int{"0_30": 8, "31_60": 3, "over_60": 1},
		"monthly_trend":       []map[string]interface{}{{"year": 2026, "month": 8, "revenue": 120000.0}},
		"quote_count":         17,
		"quote_value":         450000.0,
		"extract_duration_ms": int64(840),
	}})
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, 42, record["org_id"])
	assert.Equal(t, snapshotAt, record["snapshot_at"])
	assert.JSONEq(t, `{"0_30":8,"31_60":3,"over_60":1}`, record["wo_aging"].(string))
	assert.JSONEq(t, `[{"year":2026,"month":8,"revenue":120000}]`, record["monthly_trend"].(string))
	// Missing JSON sections land as SQL NULL.
	assert.Nil(t, record["top_customers"])
}

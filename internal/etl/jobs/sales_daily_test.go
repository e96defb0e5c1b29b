package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/models"
)

// fakeSource scripts QueryRows responses keyed by a substring of the query.
type fakeSource struct {
	responses map[string][]database.Row
	errors    map[string]error
	queries   []string
}

func (f *fakeSource) QueryRows(_ context.Context, query string, _ ...interface{}) ([]database.Row, error) {
	f.queries = append(f.queries, query)
	for needle, err := range f.errors {
		if strings.Contains(query, needle) {
			return nil, err
		}
	}
	for needle, rows := range f.responses {
		if strings.Contains(query, needle) {
			return rows, nil
		}
	}
	return []database.Row{}, nil
}

func (f *fakeSource) Close() error { return nil }

func testOrg() models.Organization {
	return models.Organization{
		ID:                   42,
		Name:                 "Acme Lift Trucks",
		SchemaName:           "acme",
		Platform:             models.PlatformEvolution,
		FiscalYearStartMonth: 11,
		IsActive:             true,
	}
}

func TestSalesDailyTransformGroupsByDayAndStream(t *testing.T) {
	job := NewSalesDaily(testOrg(), &fakeSource{}, 30)

	day1 := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

	records, err := job.Transform([]database.Row{
		{"invoice_date": day1, "sale_dept": "SV", "total_sale": 100.0, "total_cost": 60.0},
		{"invoice_date": day1, "sale_dept": "PT", "total_sale": 50.0, "total_cost": 30.0},
		{"invoice_date": day1, "sale_dept": "SV", "total_sale": 200.0, "total_cost": 120.0},
		{"invoice_date": day2, "sale_dept": "EQ", "total_sale": 40000.0, "total_cost": 32000.0},
		{"invoice_date": day2, "sale_dept": "XX", "total_sale": 10.0, "total_cost": 5.0},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, 42, first["org_id"])
	assert.Equal(t, "2026-08-20", first["sales_date"])
	assert.Equal(t, 300.0, first["service_revenue"])
	assert.Equal(t, 180.0, first["service_cost"])
	assert.Equal(t, 2, first["service_invoices"])
	assert.Equal(t, 50.0, first["parts_revenue"])
	assert.Equal(t, 350.0, first["total_revenue"])
	assert.Equal(t, 3, first["total_invoices"])

	second := records[1]
	assert.Equal(t, "2026-08-21", second["sales_date"])
	assert.Equal(t, 40000.0, second["equipment_revenue"])
	// Unknown departments count only toward totals.
	assert.Equal(t, 40010.0, second["total_revenue"])
	assert.Equal(t, 2, second["total_invoices"])
	assert.Equal(t, 0, second["service_invoices"])
}

func TestSalesDailyTransformRerunIsStable(t *testing.T) {
	job := NewSalesDaily(testOrg(), &fakeSource{}, 30)
	rows := []database.Row{
		{"invoice_date": time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), "sale_dept": "RN", "total_sale": 75.0, "total_cost": 40.0},
	}

	first, err := job.Transform(rows)
	require.NoError(t, err)
	second, err := job.Transform(rows)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSalesDailyExtractRejectsHostileSchema(t *testing.T) {
	org := testOrg()
	org.SchemaName = "acme; DROP TABLE students"
	job := NewSalesDaily(org, &fakeSource{}, 30)

	_, err := job.Extract(context.Background())
	require.Error(t, err)
}

func TestClassifyStream(t *testing.T) {
	assert.Equal(t, "service", classifyStream("SV"))
	assert.Equal(t, "service", classifyStream(" shop "))
	assert.Equal(t, "parts", classifyStream("pt"))
	assert.Equal(t, "rental", classifyStream("RNT"))
	assert.Equal(t, "equipment", classifyStream("USED"))
	assert.Equal(t, "", classifyStream("ZZ"))
	assert.Equal(t, "", classifyStream(""))
}

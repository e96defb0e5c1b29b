package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
)

// SalesDaily aggregates the invoice register over a trailing window into one
// mart row per calendar day, with revenue, cost, and invoice counts broken
// out per revenue stream (service / parts / rental / equipment).
type SalesDaily struct {
	org        models.Organization
	src        database.SourceConnector
	windowDays int
}

func NewSalesDaily(org models.Organization, src database.SourceConnector, windowDays int) *SalesDaily {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &SalesDaily{org: org, src: src, windowDays: windowDays}
}

func (j *SalesDaily) Name() string         { return "sales_daily" }
func (j *SalesDaily) SourceSystem() string { return "softbase" }
func (j *SalesDaily) TargetTable() string  { return "mart_daily_sales" }

func (j *SalesDaily) Extract(ctx context.Context) ([]database.Row, error) {
	invoiceReg, err := database.QualifyTable(j.org.SchemaName, "InvoiceReg")
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT
			CAST(ir.InvoiceDate AS DATE) AS invoice_date,
			ir.SaleDept                  AS sale_dept,
			ir.TotalSale                 AS total_sale,
			ir.TotalCost                 AS total_cost
		FROM %s ir
		WHERE ir.InvoiceDate >= DATEADD(day, -@p1, GETDATE())`, invoiceReg)

	rows, err := j.src.QueryRows(ctx, query, j.windowDays)
	if err != nil {
		return nil, errors.Wrap(err, "extract invoice register")
	}
	return rows, nil
}

func (j *SalesDaily) Transform(rows []database.Row) ([]database.Row, error) {
	daily := make(map[string]database.Row)

	for _, row := range rows {
		invoiceDate, ok := asTime(row["invoice_date"])
		if !ok {
			continue
		}
		day := invoiceDate.Format("2006-01-02")

		record, exists := daily[day]
		if !exists {
			record = newDailySalesRecord(j.org.ID, day)
			daily[day] = record
		}

		sale := asFloat(row["total_sale"])
		cost := asFloat(row["total_cost"])

		if stream := classifyStream(asString(row["sale_dept"])); stream != "" {
			record[stream+"_revenue"] = asFloat(record[stream+"_revenue"]) + sale
			record[stream+"_cost"] = asFloat(record[stream+"_cost"]) + cost
			record[stream+"_invoices"] = asInt(record[stream+"_invoices"]) + 1
		}
		record["total_revenue"] = asFloat(record["total_revenue"]) + sale
		record["total_cost"] = asFloat(record["total_cost"]) + cost
		record["total_invoices"] = asInt(record["total_invoices"]) + 1
	}

	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	records := make([]database.Row, 0, len(daily))
	for _, day := range days {
		records = append(records, daily[day])
	}
	return records, nil
}

func (j *SalesDaily) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "sales_date"}); err != nil {
			return err
		}
	}
	return nil
}

func newDailySalesRecord(orgID int, day string) database.Row {
	record := database.Row{
		"org_id":     orgID,
		"sales_date": day,
	}
	for _, stream := range []string{"service", "parts", "rental", "equipment", "total"} {
		record[stream+"_revenue"] = 0.0
		record[stream+"_cost"] = 0.0
		record[stream+"_invoices"] = 0
	}
	return record
}

// classifyStream maps an Evolution sale department code onto one of the four
// reporting streams. Unknown departments still count toward the totals.
func classifyStream(dept string) string {
	switch strings.ToUpper(strings.TrimSpace(dept)) {
	case "SV", "SVE", "SHOP", "FLD":
		return "service"
	case "PT", "PRT", "CTR":
		return "parts"
	case "RN", "RNT", "STR", "LTR":
		return "rental"
	case "EQ", "NEW", "USED", "ALD":
		return "equipment"
	default:
		return ""
	}
}

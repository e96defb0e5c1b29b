package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
)

// CEOSnapshot assembles the executive dashboard row: month-to-date and
// fiscal-year-to-date revenue, open work orders with an aging breakdown,
// a twelve-month revenue trend, top customers, and open quotes. It runs
// several source queries and packs the combined result into one row per
// snapshot time.
//
// Unlike department metrics, the sections here are not isolated: the first
// failed query fails the whole run. A dashboard row with a silently zeroed
// revenue figure is worse than no row.
type CEOSnapshot struct {
	org models.Organization
	src database.SourceConnector
	now func() time.Time
}

func NewCEOSnapshot(org models.Organization, src database.SourceConnector) *CEOSnapshot {
	return &CEOSnapshot{org: org, src: src, now: time.Now}
}

func (j *CEOSnapshot) Name() string         { return "ceo_snapshot" }
func (j *CEOSnapshot) SourceSystem() string { return "softbase" }
func (j *CEOSnapshot) TargetTable() string  { return "mart_ceo_snapshot" }

func (j *CEOSnapshot) Extract(ctx context.Context) ([]database.Row, error) {
	invoiceReg, err := database.QualifyTable(j.org.SchemaName, "InvoiceReg")
	if err != nil {
		return nil, err
	}
	workOrders, err := database.QualifyTable(j.org.SchemaName, "WO")
	if err != nil {
		return nil, err
	}
	quotes, err := database.QualifyTable(j.org.SchemaName, "WOQuote")
	if err != nil {
		return nil, err
	}

	now := j.now()
	started := now
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	fiscalStart := fiscalYearStart(now, j.org.FiscalYearStartMonth)
	trendStart := monthStart.AddDate(0, -11, 0)

	record := database.Row{}

	revenueRows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			SUM(CASE WHEN ir.InvoiceDate >= @p1 THEN ir.TotalSale ELSE 0 END) AS mtd_revenue,
			SUM(ir.TotalSale)                                                 AS ytd_revenue
		FROM %s ir
		WHERE ir.InvoiceDate >= @p2`, invoiceReg), monthStart, fiscalStart)
	if err != nil {
		return nil, errors.Wrap(err, "extract revenue")
	}
	if len(revenueRows) > 0 {
		record["mtd_revenue"] = asFloat(revenueRows[0]["mtd_revenue"])
		record["ytd_revenue"] = asFloat(revenueRows[0]["ytd_revenue"])
	}

	woRows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*)                                                          AS open_count,
			SUM(CASE WHEN wo.OpenDate >= @p1 THEN 1 ELSE 0 END)               AS age_0_30,
			SUM(CASE WHEN wo.OpenDate < @p1 AND wo.OpenDate >= @p2 THEN 1 ELSE 0 END) AS age_31_60,
			SUM(CASE WHEN wo.OpenDate < @p2 THEN 1 ELSE 0 END)                AS age_over_60
		FROM %s wo
		WHERE wo.ClosedDate IS NULL`, workOrders),
		now.AddDate(0, 0, -30), now.AddDate(0, 0, -60))
	if err != nil {
		return nil, errors.Wrap(err, "extract open work orders")
	}
	if len(woRows) > 0 {
		record["open_work_orders"] = asInt(woRows[0]["open_count"])
		record["wo_aging"] = map[string]int{
			"0_30":    asInt(woRows[0]["age_0_30"]),
			"31_60":   asInt(woRows[0]["age_31_60"]),
			"over_60": asInt(woRows[0]["age_over_60"]),
		}
	}

	trendRows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			YEAR(ir.InvoiceDate)  AS trend_year,
			MONTH(ir.InvoiceDate) AS trend_month,
			SUM(ir.TotalSale)     AS revenue
		FROM %s ir
		WHERE ir.InvoiceDate >= @p1
		GROUP BY YEAR(ir.InvoiceDate), MONTH(ir.InvoiceDate)
		ORDER BY YEAR(ir.InvoiceDate), MONTH(ir.InvoiceDate)`, invoiceReg), trendStart)
	if err != nil {
		return nil, errors.Wrap(err, "extract revenue trend")
	}
	trend := make([]map[string]interface{}, 0, len(trendRows))
	for _, row := range trendRows {
		trend = append(trend, map[string]interface{}{
			"year":    asInt(row["trend_year"]),
			"month":   asInt(row["trend_month"]),
			"revenue": asFloat(row["revenue"]),
		})
	}
	record["monthly_trend"] = trend

	topRows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT TOP 10
			ir.BillToName     AS customer_name,
			SUM(ir.TotalSale) AS revenue
		FROM %s ir
		WHERE ir.InvoiceDate >= @p1
		  AND ir.BillToName IS NOT NULL
		GROUP BY ir.BillToName
		ORDER BY SUM(ir.TotalSale) DESC`, invoiceReg), fiscalStart)
	if err != nil {
		return nil, errors.Wrap(err, "extract top customers")
	}
	top := make([]map[string]interface{}, 0, len(topRows))
	for _, row := range topRows {
		top = append(top, map[string]interface{}{
			"name":    asString(row["customer_name"]),
			"revenue": asFloat(row["revenue"]),
		})
	}
	record["top_customers"] = top

	quoteRows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*)           AS quote_count,
			SUM(q.QuoteAmount) AS quote_value
		FROM %s q
		WHERE q.AcceptedDate IS NULL AND q.RejectedDate IS NULL`, quotes))
	if err != nil {
		return nil, errors.Wrap(err, "extract open quotes")
	}
	if len(quoteRows) > 0 {
		record["quote_count"] = asInt(quoteRows[0]["quote_count"])
		record["quote_value"] = asFloat(quoteRows[0]["quote_value"])
	}

	record["snapshot_at"] = now
	record["extract_duration_ms"] = j.now().Sub(started).Milliseconds()
	return []database.Row{record}, nil
}

func (j *CEOSnapshot) Transform(rows []database.Row) ([]database.Row, error) {
	records := make([]database.Row, 0, len(rows))
	for _, raw := range rows {
		record := database.Row{
			"org_id":              j.org.ID,
			"snapshot_at":         raw["snapshot_at"],
			"mtd_revenue":         asFloat(raw["mtd_revenue"]),
			"ytd_revenue":         asFloat(raw["ytd_revenue"]),
			"open_work_orders":    asInt(raw["open_work_orders"]),
			"quote_count":         asInt(raw["quote_count"]),
			"quote_value":         asFloat(raw["quote_value"]),
			"extract_duration_ms": raw["extract_duration_ms"],
		}
		for _, field := range []string{"wo_aging", "monthly_trend", "top_customers"} {
			encoded, err := marshalJSONB(raw[field])
			if err != nil {
				return nil, errors.Wrapf(err, "encode %s", field)
			}
			record[field] = encoded
		}
		records = append(records, record)
	}
	return records, nil
}

func (j *CEOSnapshot) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "snapshot_at"}); err != nil {
			return err
		}
	}
	return nil
}

// fiscalYearStart returns the start of the fiscal year containing now.
// Dealerships here run a November fiscal year by default.
func fiscalYearStart(now time.Time, startMonth int) time.Time {
	if startMonth < 1 || startMonth > 12 {
		startMonth = 11
	}
	year := now.Year()
	if int(now.Month()) < startMonth {
		year--
	}
	return time.Date(year, time.Month(startMonth), 1, 0, 0, 0, 0, now.Location())
}

// marshalJSONB renders a value for a JSONB column. Nil becomes SQL NULL.
func marshalJSONB(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
)

// CustomerActivity compares each customer's recent invoice window against
// the window before it and classifies them as active, at risk, new, or
// churned. One snapshot row per customer per run date.
type CustomerActivity struct {
	org        models.Organization
	src        database.SourceConnector
	windowDays int
	now        func() time.Time
}

func NewCustomerActivity(org models.Organization, src database.SourceConnector, windowDays int) *CustomerActivity {
	if windowDays <= 0 {
		windowDays = 90
	}
	return &CustomerActivity{org: org, src: src, windowDays: windowDays, now: time.Now}
}

func (j *CustomerActivity) Name() string         { return "customer_activity" }
func (j *CustomerActivity) SourceSystem() string { return "softbase" }
func (j *CustomerActivity) TargetTable() string  { return "mart_customer_activity" }

func (j *CustomerActivity) Extract(ctx context.Context) ([]database.Row, error) {
	invoiceReg, err := database.QualifyTable(j.org.SchemaName, "InvoiceReg")
	if err != nil {
		return nil, err
	}

	now := j.now()
	recentStart := now.AddDate(0, 0, -j.windowDays)
	previousStart := now.AddDate(0, 0, -2*j.windowDays)

	query := fmt.Sprintf(`
		SELECT
			ir.BillToName AS customer_name,
			SUM(CASE WHEN ir.InvoiceDate >= @p1 THEN 1 ELSE 0 END)            AS recent_invoices,
			SUM(CASE WHEN ir.InvoiceDate >= @p1 THEN ir.TotalSale ELSE 0 END) AS recent_revenue,
			SUM(CASE WHEN ir.InvoiceDate < @p1 THEN 1 ELSE 0 END)             AS previous_invoices,
			SUM(CASE WHEN ir.InvoiceDate < @p1 THEN ir.TotalSale ELSE 0 END)  AS previous_revenue
		FROM %s ir
		WHERE ir.InvoiceDate >= @p2
		  AND ir.BillToName IS NOT NULL
		  AND LTRIM(RTRIM(ir.BillToName)) <> ''
		GROUP BY ir.BillToName`, invoiceReg)

	rows, err := j.src.QueryRows(ctx, query, recentStart, previousStart)
	if err != nil {
		return nil, errors.Wrap(err, "extract customer invoices")
	}
	return rows, nil
}

func (j *CustomerActivity) Transform(rows []database.Row) ([]database.Row, error) {
	snapshotDate := j.now().Format("2006-01-02")

	records := make([]database.Row, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(asString(row["customer_name"]))
		if name == "" {
			continue
		}

		recentInvoices := asInt(row["recent_invoices"])
		recentRevenue := asFloat(row["recent_revenue"])
		previousInvoices := asInt(row["previous_invoices"])
		previousRevenue := asFloat(row["previous_revenue"])

		records = append(records, database.Row{
			"org_id":            j.org.ID,
			"customer_name":     name,
			"snapshot_date":     snapshotDate,
			"recent_invoices":   recentInvoices,
			"recent_revenue":    recentRevenue,
			"previous_invoices": previousInvoices,
			"previous_revenue":  previousRevenue,
			"churn_status":      churnStatus(recentInvoices, recentRevenue, previousInvoices, previousRevenue),
		})
	}

	sort.Slice(records, func(i, k int) bool {
		return records[i]["customer_name"].(string) < records[k]["customer_name"].(string)
	})
	return records, nil
}

func (j *CustomerActivity) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "customer_name", "snapshot_date"}); err != nil {
			return err
		}
	}
	return nil
}

// churnStatus classifies a customer by comparing the two windows. A customer
// who bought before but not recently has churned; the reverse is a new
// customer; a revenue drop to half or less flags them at risk. A 50% drop
// exactly counts as at risk.
func churnStatus(recentInvoices int, recentRevenue float64, previousInvoices int, previousRevenue float64) string {
	switch {
	case previousInvoices > 0 && recentInvoices == 0:
		return "churned"
	case previousInvoices == 0 && recentInvoices > 0:
		return "new"
	case previousRevenue > 0 && recentRevenue <= previousRevenue*0.5:
		return "at_risk"
	default:
		return "active"
	}
}

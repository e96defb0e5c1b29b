package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
)

// DepartmentMetrics captures one operational snapshot per department. Each
// department's queries run independently: a department whose extraction
// fails is skipped for this run and the others still land, so one broken
// source table never blanks the whole dashboard. The job fails only when
// every department fails.
type DepartmentMetrics struct {
	org models.Organization
	src database.SourceConnector
	now func() time.Time
}

func NewDepartmentMetrics(org models.Organization, src database.SourceConnector) *DepartmentMetrics {
	return &DepartmentMetrics{org: org, src: src, now: time.Now}
}

func (j *DepartmentMetrics) Name() string         { return "department_metrics" }
func (j *DepartmentMetrics) SourceSystem() string { return "softbase" }
func (j *DepartmentMetrics) TargetTable() string  { return "mart_department_metrics" }

type departmentExtractor struct {
	department string
	extract    func(ctx context.Context, snapshotAt time.Time) (map[string]interface{}, error)
}

func (j *DepartmentMetrics) Extract(ctx context.Context) ([]database.Row, error) {
	extractors := []departmentExtractor{
		{"service", j.extractService},
		{"parts", j.extractParts},
		{"rental", j.extractRental},
		{"accounting", j.extractAccounting},
		{"financial", j.extractFinancial},
		{"equipment", j.extractEquipment},
	}

	snapshotAt := j.now()
	rows := make([]database.Row, 0, len(extractors))
	var firstErr error

	for _, ex := range extractors {
		metrics, err := ex.extract(ctx, snapshotAt)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "department %s", ex.department)
			}
			continue
		}
		rows = append(rows, database.Row{
			"department":  ex.department,
			"snapshot_at": snapshotAt,
			"metrics":     metrics,
		})
	}

	if len(rows) == 0 && firstErr != nil {
		return nil, errors.Wrap(firstErr, "all departments failed")
	}
	return rows, nil
}

func (j *DepartmentMetrics) extractService(ctx context.Context, snapshotAt time.Time) (map[string]interface{}, error) {
	workOrders, err := database.QualifyTable(j.org.SchemaName, "WO")
	if err != nil {
		return nil, err
	}
	rows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*)                                                    AS open_work_orders,
			SUM(CASE WHEN wo.OpenDate < @p1 THEN 1 ELSE 0 END)          AS aged_over_30,
			AVG(DATEDIFF(day, wo.OpenDate, GETDATE()) * 1.0)            AS avg_age_days,
			SUM(wo.LaborHoursBilled)                                    AS labor_hours_billed
		FROM %s wo
		WHERE wo.ClosedDate IS NULL`, workOrders), snapshotAt.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]interface{}{}, nil
	}
	return map[string]interface{}{
		"open_work_orders":   asInt(rows[0]["open_work_orders"]),
		"aged_over_30":       asInt(rows[0]["aged_over_30"]),
		"avg_age_days":       asFloat(rows[0]["avg_age_days"]),
		"labor_hours_billed": asFloat(rows[0]["labor_hours_billed"]),
	}, nil
}

func (j *DepartmentMetrics) extractParts(ctx context.Context, _ time.Time) (map[string]interface{}, error) {
	parts, err := database.QualifyTable(j.org.SchemaName, "Parts")
	if err != nil {
		return nil, err
	}
	rows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*)                                             AS sku_count,
			SUM(p.OnHand * p.Cost)                               AS inventory_value,
			SUM(CASE WHEN p.OnHand = 0 THEN 1 ELSE 0 END)        AS stockouts,
			SUM(p.OnOrder)                                       AS units_on_order
		FROM %s p`, parts))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]interface{}{}, nil
	}
	return map[string]interface{}{
		"sku_count":       asInt(rows[0]["sku_count"]),
		"inventory_value": asFloat(rows[0]["inventory_value"]),
		"stockouts":       asInt(rows[0]["stockouts"]),
		"units_on_order":  asInt(rows[0]["units_on_order"]),
	}, nil
}

func (j *DepartmentMetrics) extractRental(ctx context.Context, _ time.Time) (map[string]interface{}, error) {
	rentals, err := database.QualifyTable(j.org.SchemaName, "RentalContract")
	if err != nil {
		return nil, err
	}
	rows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*)          AS active_contracts,
			SUM(r.MonthlyRate) AS monthly_rate_total
		FROM %s r
		WHERE r.ReturnDate IS NULL`, rentals))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]interface{}{}, nil
	}
	return map[string]interface{}{
		"active_contracts":   asInt(rows[0]["active_contracts"]),
		"monthly_rate_total": asFloat(rows[0]["monthly_rate_total"]),
	}, nil
}

func (j *DepartmentMetrics) extractAccounting(ctx context.Context, snapshotAt time.Time) (map[string]interface{}, error) {
	glDetail, err := database.QualifyTable(j.org.SchemaName, "GLDetail")
	if err != nil {
		return nil, err
	}
	monthStart := time.Date(snapshotAt.Year(), snapshotAt.Month(), 1, 0, 0, 0, 0, snapshotAt.Location())
	rows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*)                                                 AS mtd_journal_lines,
			SUM(CASE WHEN gl.Amount > 0 THEN gl.Amount ELSE 0 END)   AS mtd_debits,
			SUM(CASE WHEN gl.Amount < 0 THEN -gl.Amount ELSE 0 END)  AS mtd_credits,
			SUM(CASE WHEN gl.PostedDate IS NULL THEN 1 ELSE 0 END)   AS unposted_entries
		FROM %s gl
		WHERE gl.EffectiveDate >= @p1`, glDetail), monthStart)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]interface{}{}, nil
	}
	return map[string]interface{}{
		"mtd_journal_lines": asInt(rows[0]["mtd_journal_lines"]),
		"mtd_debits":        asFloat(rows[0]["mtd_debits"]),
		"mtd_credits":       asFloat(rows[0]["mtd_credits"]),
		"unposted_entries":  asInt(rows[0]["unposted_entries"]),
	}, nil
}

func (j *DepartmentMetrics) extractFinancial(ctx context.Context, snapshotAt time.Time) (map[string]interface{}, error) {
	arDetail, err := database.QualifyTable(j.org.SchemaName, "ARDetail")
	if err != nil {
		return nil, err
	}
	rows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			SUM(ar.Amount)                                            AS ar_total,
			SUM(CASE WHEN ar.DueDate >= @p1 THEN ar.Amount ELSE 0 END) AS ar_current,
			SUM(CASE WHEN ar.DueDate < @p1 AND ar.DueDate >= @p2 THEN ar.Amount ELSE 0 END) AS ar_over_30,
			SUM(CASE WHEN ar.DueDate < @p2 AND ar.DueDate >= @p3 THEN ar.Amount ELSE 0 END) AS ar_over_60,
			SUM(CASE WHEN ar.DueDate < @p3 THEN ar.Amount ELSE 0 END) AS ar_over_90
		FROM %s ar
		WHERE ar.PaidDate IS NULL`, arDetail),
		snapshotAt.AddDate(0, 0, -30), snapshotAt.AddDate(0, 0, -60), snapshotAt.AddDate(0, 0, -90))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]interface{}{}, nil
	}
	return map[string]interface{}{
		"ar_total":   asFloat(rows[0]["ar_total"]),
		"ar_current": asFloat(rows[0]["ar_current"]),
		"ar_over_30": asFloat(rows[0]["ar_over_30"]),
		"ar_over_60": asFloat(rows[0]["ar_over_60"]),
		"ar_over_90": asFloat(rows[0]["ar_over_90"]),
	}, nil
}

func (j *DepartmentMetrics) extractEquipment(ctx context.Context, snapshotAt time.Time) (map[string]interface{}, error) {
	equipment, err := database.QualifyTable(j.org.SchemaName, "Equipment")
	if err != nil {
		return nil, err
	}
	rows, err := j.src.QueryRows(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*)                                                 AS units_in_stock,
			SUM(e.Cost)                                              AS stock_value,
			SUM(CASE WHEN e.ReceivedDate < @p1 THEN 1 ELSE 0 END)    AS aged_over_180
		FROM %s e
		WHERE e.SoldDate IS NULL`, equipment), snapshotAt.AddDate(0, 0, -180))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]interface{}{}, nil
	}
	return map[string]interface{}{
		"units_in_stock": asInt(rows[0]["units_in_stock"]),
		"stock_value":    asFloat(rows[0]["stock_value"]),
		"aged_over_180":  asInt(rows[0]["aged_over_180"]),
	}, nil
}

func (j *DepartmentMetrics) Transform(rows []database.Row) ([]database.Row, error) {
	records := make([]database.Row, 0, len(rows))
	for _, raw := range rows {
		encoded, err := marshalJSONB(raw["metrics"])
		if err != nil {
			return nil, errors.Wrapf(err, "encode metrics for %v", raw["department"])
		}
		records = append(records, database.Row{
			"org_id":      j.org.ID,
			"department":  raw["department"],
			"snapshot_at": raw["snapshot_at"],
			"metrics":     encoded,
		})
	}
	return records, nil
}

func (j *DepartmentMetrics) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "department", "snapshot_at"}); err != nil {
			return err
		}
	}
	return nil
}

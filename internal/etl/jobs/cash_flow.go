package jobs

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
)

// General-ledger account prefixes in the Evolution chart of accounts.
const (
	glCash       = "1000"
	glReceivable = "1100"
	glInventory  = "1200"
	glPayable    = "2000"
)

// CashFlow builds a monthly liquidity picture from the general ledger:
// cash balance, operating cash flow, receivables, inventory, and payables,
// plus a health classification per month.
type CashFlow struct {
	org          models.Organization
	src          database.SourceConnector
	windowMonths int
}

func NewCashFlow(org models.Organization, src database.SourceConnector, windowMonths int) *CashFlow {
	if windowMonths <= 0 {
		windowMonths = 12
	}
	return &CashFlow{org: org, src: src, windowMonths: windowMonths}
}

func (j *CashFlow) Name() string         { return "cash_flow" }
func (j *CashFlow) SourceSystem() string { return "softbase" }
func (j *CashFlow) TargetTable() string  { return "mart_cash_flow" }

func (j *CashFlow) Extract(ctx context.Context) ([]database.Row, error) {
	glDetail, err := database.QualifyTable(j.org.SchemaName, "GLDetail")
	if err != nil {
		return nil, err
	}
	// One row per (year, month, account class) with the month's net movement
	// and the running balance at month end.
	query := fmt.Sprintf(`
		SELECT
			YEAR(gl.EffectiveDate)  AS gl_year,
			MONTH(gl.EffectiveDate) AS gl_month,
			LEFT(gl.AccountNo, 4)   AS account_class,
			SUM(gl.Amount)          AS net_movement
		FROM %s gl
		WHERE gl.EffectiveDate >= DATEADD(month, -@p1, GETDATE())
		  AND LEFT(gl.AccountNo, 4) IN (@p2, @p3, @p4, @p5)
		GROUP BY YEAR(gl.EffectiveDate), MONTH(gl.EffectiveDate), LEFT(gl.AccountNo, 4)`,
		glDetail)

	rows, err := j.src.QueryRows(ctx, query, j.windowMonths, glCash, glReceivable, glInventory, glPayable)
	if err != nil {
		return nil, errors.Wrap(err, "extract general ledger detail")
	}
	return rows, nil
}

func (j *CashFlow) Transform(rows []database.Row) ([]database.Row, error) {
	type monthKey struct {
		year  int
		month int
	}

	months := make(map[monthKey]database.Row)
	order := make([]monthKey, 0)

	for _, row := range rows {
		key := monthKey{year: asInt(row["gl_year"]), month: asInt(row["gl_month"])}
		if key.year == 0 || key.month < 1 || key.month > 12 {
			continue
		}

		record, exists := months[key]
		if !exists {
			record = database.Row{
				"org_id":              j.org.ID,
				"year":                key.year,
				"month":               key.month,
				"cash_balance":        0.0,
				"operating_cash_flow": 0.0,
				"accounts_receivable": 0.0,
				"inventory_value":     0.0,
				"accounts_payable":    0.0,
			}
			months[key] = record
			order = append(order, key)
		}

		movement := asFloat(row["net_movement"])
		switch asString(row["account_class"]) {
		case glCash:
			record["cash_balance"] = asFloat(record["cash_balance"]) + movement
			record["operating_cash_flow"] = asFloat(record["operating_cash_flow"]) + movement
		case glReceivable:
			record["accounts_receivable"] = asFloat(record["accounts_receivable"]) + movement
		case glInventory:
			record["inventory_value"] = asFloat(record["inventory_value"]) + movement
		case glPayable:
			record["accounts_payable"] = asFloat(record["accounts_payable"]) + movement
		}
	}

	records := make([]database.Row, 0, len(order))
	for _, key := range order {
		record := months[key]
		record["health_status"] = healthStatus(asFloat(record["operating_cash_flow"]))
		records = append(records, record)
	}
	return records, nil
}

func (j *CashFlow) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "year", "month"}); err != nil {
			return err
		}
	}
	return nil
}

// healthStatus classifies a month by its operating cash flow: positive is
// healthy, a drawdown under $50k is a warning, anything deeper is critical.
// Exactly zero is a warning, since flat cash flow still deserves a look.
func healthStatus(operatingCashFlow float64) string {
	switch {
	case operatingCashFlow > 0:
		return "healthy"
	case operatingCashFlow > -50000:
		return "warning"
	default:
		return "critical"
	}
}

package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/martforge/martforge-api/internal/connectors"
	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
)

// FinanceSource yields an income statement summary for a period.
type FinanceSource interface {
	ProfitAndLoss(ctx context.Context, start, end time.Time) (connectors.ProfitAndLoss, error)
}

// FinancialSummary lands the current month's P&L from the accounting
// system, one row per (year, month), refreshed in place as the month fills.
type FinancialSummary struct {
	org     models.Organization
	finance FinanceSource
	now     func() time.Time
}

func NewFinancialSummary(org models.Organization, finance FinanceSource) *FinancialSummary {
	return &FinancialSummary{org: org, finance: finance, now: time.Now}
}

func (j *FinancialSummary) Name() string         { return "financial_summary" }
func (j *FinancialSummary) SourceSystem() string { return "quickbooks" }
func (j *FinancialSummary) TargetTable() string  { return "mart_financial_summary" }

func (j *FinancialSummary) Extract(ctx context.Context) ([]database.Row, error) {
	if j.finance == nil {
		return nil, errors.New("financial summary: no finance source configured")
	}

	now := j.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, -1)

	pl, err := j.finance.ProfitAndLoss(ctx, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "fetch profit and loss")
	}

	return []database.Row{{
		"year":       start.Year(),
		"month":      int(start.Month()),
		"revenue":    pl.TotalRevenue,
		"expenses":   pl.TotalExpenses,
		"net_income": pl.NetIncome,
	}}, nil
}

func (j *FinancialSummary) Transform(rows []database.Row) ([]database.Row, error) {
	records := make([]database.Row, 0, len(rows))
	for _, row := range rows {
		records = append(records, database.Row{
			"org_id":     j.org.ID,
			"year":       asInt(row["year"]),
			"month":      asInt(row["month"]),
			"revenue":    asFloat(row["revenue"]),
			"expenses":   asFloat(row["expenses"]),
			"net_income": asFloat(row["net_income"]),
		})
	}
	return records, nil
}

func (j *FinancialSummary) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "year", "month"}); err != nil {
			return err
		}
	}
	return nil
}

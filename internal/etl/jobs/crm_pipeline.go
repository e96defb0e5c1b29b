package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/martforge/martforge-api/internal/connectors"
	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
)

// DealSource yields the CRM deal list for pipeline reporting.
type DealSource interface {
	ListDeals(ctx context.Context) ([]connectors.Deal, error)
}

// CRMPipeline snapshots the sales pipeline from the CRM: total, open, and
// won deal counts plus open pipeline and won value. One row per day.
type CRMPipeline struct {
	org   models.Organization
	deals DealSource
	now   func() time.Time
}

func NewCRMPipeline(org models.Organization, deals DealSource) *CRMPipeline {
	return &CRMPipeline{org: org, deals: deals, now: time.Now}
}

func (j *CRMPipeline) Name() string         { return "crm_pipeline" }
func (j *CRMPipeline) SourceSystem() string { return "hubspot" }
func (j *CRMPipeline) TargetTable() string  { return "mart_crm_pipeline" }

func (j *CRMPipeline) Extract(ctx context.Context) ([]database.Row, error) {
	if j.deals == nil {
		return nil, errors.New("crm pipeline: no deal source configured")
	}
	deals, err := j.deals.ListDeals(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list CRM deals")
	}

	rows := make([]database.Row, 0, len(deals))
	for _, deal := range deals {
		rows = append(rows, database.Row{
			"amount": deal.Properties["amount"],
			"stage":  deal.Properties["dealstage"],
		})
	}
	return rows, nil
}

func (j *CRMPipeline) Transform(rows []database.Row) ([]database.Row, error) {
	record := database.Row{
		"org_id":         j.org.ID,
		"snapshot_date":  j.now().Format("2006-01-02"),
		"total_deals":    0,
		"open_deals":     0,
		"won_deals":      0,
		"pipeline_value": 0.0,
		"won_value":      0.0,
	}

	for _, row := range rows {
		amount := asFloat(row["amount"])
		record["total_deals"] = asInt(record["total_deals"]) + 1

		switch stage := strings.ToLower(asString(row["stage"])); {
		case strings.Contains(stage, "closedwon"):
			record["won_deals"] = asInt(record["won_deals"]) + 1
			record["won_value"] = asFloat(record["won_value"]) + amount
		case strings.Contains(stage, "closedlost"):
			// Lost deals count toward the total only.
		default:
			record["open_deals"] = asInt(record["open_deals"]) + 1
			record["pipeline_value"] = asFloat(record["pipeline_value"]) + amount
		}
	}
	return []database.Row{record}, nil
}

func (j *CRMPipeline) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "snapshot_date"}); err != nil {
			return err
		}
	}
	return nil
}

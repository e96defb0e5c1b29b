package jobs

import (
	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/models"
)

// CatalogDeps carries everything the job factories need beyond the per-tenant
// organization and source connector. The API sources may be nil when a
// platform integration is not configured; jobs that need a missing source
// fail their runs with a clear error rather than being silently dropped
// from the catalog.
type CatalogDeps struct {
	SalesWindowDays      int
	CashFlowWindowMonths int

	Deals     DealSource
	Finance   FinanceSource
	Meetings  MeetingSource
	AppEvents AppEventSource
}

// Catalog returns every registered job definition, Evolution jobs first.
// Order matters only for log readability.
func Catalog(deps CatalogDeps) []etl.JobDefinition {
	return []etl.JobDefinition{
		{
			Name:     "sales_daily",
			Platform: models.PlatformEvolution,
			New: func(org models.Organization, src database.SourceConnector) etl.Job {
				return NewSalesDaily(org, src, deps.SalesWindowDays)
			},
		},
		{
			Name:     "cash_flow",
			Platform: models.PlatformEvolution,
			New: func(org models.Organization, src database.SourceConnector) etl.Job {
				return NewCashFlow(org, src, deps.CashFlowWindowMonths)
			},
		},
		{
			Name:     "customer_activity",
			Platform: models.PlatformEvolution,
			New: func(org models.Organization, src database.SourceConnector) etl.Job {
				return NewCustomerActivity(org, src, deps.SalesWindowDays*3)
			},
		},
		{
			Name:     "ceo_snapshot",
			Platform: models.PlatformEvolution,
			New: func(org models.Organization, src database.SourceConnector) etl.Job {
				return NewCEOSnapshot(org, src)
			},
		},
		{
			Name:     "department_metrics",
			Platform: models.PlatformEvolution,
			New: func(org models.Organization, src database.SourceConnector) etl.Job {
				return NewDepartmentMetrics(org, src)
			},
		},
		{
			Name:     "crm_pipeline",
			Platform: models.PlatformVital,
			New: func(org models.Organization, _ database.SourceConnector) etl.Job {
				return NewCRMPipeline(org, deps.Deals)
			},
		},
		{
			Name:     "financial_summary",
			Platform: models.PlatformVital,
			New: func(org models.Organization, _ database.SourceConnector) etl.Job {
				return NewFinancialSummary(org, deps.Finance)
			},
		},
		{
			Name:     "communications",
			Platform: models.PlatformVital,
			New: func(org models.Organization, _ database.SourceConnector) etl.Job {
				return NewCommunications(org, deps.Meetings)
			},
		},
		{
			Name:     "app_engagement",
			Platform: models.PlatformVital,
			New: func(org models.Organization, _ database.SourceConnector) etl.Job {
				return NewAppEngagement(org, deps.AppEvents)
			},
		},
	}
}

// Find looks a definition up by name.
func Find(defs []etl.JobDefinition, name string) (etl.JobDefinition, bool) {
	for _, def := range defs {
		if def.Name == name {
			return def, true
		}
	}
	return etl.JobDefinition{}, false
}

// Names lists the catalog's job names in order.
func Names(defs []etl.JobDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	return names
}

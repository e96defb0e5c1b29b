package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/models"
)

func TestCatalogCoversBothPlatforms(t *testing.T) {
	defs := Catalog(CatalogDeps{SalesWindowDays: 30, CashFlowWindowMonths: 12})

	assert.Equal(t, []string{
		"sales_daily",
		"cash_flow",
		"customer_activity",
		"ceo_snapshot",
		"department_metrics",
		"crm_pipeline",
		"financial_summary",
		"communications",
		"app_engagement",
	}, Names(defs))

	for _, def := range defs {
		switch def.Platform {
		case models.PlatformEvolution:
			assert.True(t, def.NeedsSource(), def.Name)
		case models.PlatformVital:
			assert.False(t, def.NeedsSource(), def.Name)
		default:
			t.Fatalf("definition %s has unknown platform %q", def.Name, def.Platform)
		}
	}
}

func TestCatalogFactoriesBuildJobs(t *testing.T) {
	defs := Catalog(CatalogDeps{SalesWindowDays: 30, CashFlowWindowMonths: 12})

	for _, def := range defs {
		var job interface{ Name() string }
		if def.NeedsSource() {
			job = def.New(testOrg(), &fakeSource{})
		} else {
			job = def.New(vitalOrg(), nil)
		}
		require.NotNil(t, job, def.Name)
		assert.Equal(t, def.Name, job.Name())
	}
}

func TestFind(t *testing.T) {
	defs := Catalog(CatalogDeps{})

	def, ok := Find(defs, "cash_flow")
	require.True(t, ok)
	assert.Equal(t, "cash_flow", def.Name)

	_, ok = Find(defs, "nonexistent")
	assert.False(t, ok)
}

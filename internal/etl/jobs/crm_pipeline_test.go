package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/connectors"
	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/models"
)

type fakeDealSource struct {
	deals []connectors.Deal
	err   error
}

func (f *fakeDealSource) ListDeals(context.Context) ([]connectors.Deal, error) {
	return f.deals, f.err
}

func vitalOrg() models.Organization {
	return models.Organization{
		ID:       7,
		Name:     "VITAL Wellness",
		Platform: models.PlatformVital,
		IsActive: true,
	}
}

func TestCRMPipelineSnapshotCounts(t *testing.T) {
	job := NewCRMPipeline(vitalOrg(), &fakeDealSource{})
	job.now = func() time.Time { return time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC) }

	records, err := job.Transform([]database.Row{
		{"amount": "12000", "stage": "qualifiedtobuy"},
		{"amount": "8000", "stage": "presentationscheduled"},
		{"amount": "30000", "stage": "closedwon"},
		{"amount": "5000", "stage": "closedlost"},
		// Deals with no amount still count.
		{"amount": "", "stage": "appointmentscheduled"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, 7, record["org_id"])
	assert.Equal(t, "2026-08-24", record["snapshot_date"])
	assert.Equal(t, 5, record["total_deals"])
	assert.Equal(t, 3, record["open_deals"])
	assert.Equal(t, 1, record["won_deals"])
	assert.Equal(t, 20000.0, record["pipeline_value"])
	assert.Equal(t, 30000.0, record["won_value"])
}

func TestCRMPipelineEmptyPortalStillSnapshots(t *testing.T) {
	job := NewCRMPipeline(vitalOrg(), &fakeDealSource{})
	job.now = func() time.Time { return time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC) }

	rows, err := job.Extract(context.Background())
	require.NoError(t, err)
	// No deals means the run is a successful no-op upstream.
	assert.Empty(t, rows)
}

func TestCRMPipelineExtractErrors(t *testing.T) {
	job := NewCRMPipeline(vitalOrg(), &fakeDealSource{err: errors.New("rate limited")})
	_, err := job.Extract(context.Background())
	require.Error(t, err)

	missing := NewCRMPipeline(vitalOrg(), nil)
	_, err = missing.Extract(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no deal source")
}

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/connectors"
)

type fakeFinanceSource struct {
	pl  connectors.ProfitAndLoss
	err error
}

func (f *fakeFinanceSource) ProfitAndLoss(context.Context, time.Time, time.Time) (connectors.ProfitAndLoss, error) {
	return f.pl, f.err
}

type fakeMeetingSource struct {
	usage connectors.DailyUsage
	day   time.Time
}

func (f *fakeMeetingSource) Usage(_ context.Context, day time.Time) (connectors.DailyUsage, error) {
	f.day = day
	return f.usage, nil
}

type fakeAppEventSource struct {
	stats connectors.EngagementStats
	orgID int
}

func (f *fakeAppEventSource) Engagement(_ context.Context, orgID int, _ time.Time) (connectors.EngagementStats, error) {
	f.orgID = orgID
	return f.stats, nil
}

func TestFinancialSummaryCurrentMonth(t *testing.T) {
	job := NewFinancialSummary(vitalOrg(), &fakeFinanceSource{
		pl: connectors.ProfitAndLoss{TotalRevenue: 90000, TotalExpenses: 65000, NetIncome: 25000},
	})
	job.now = func() time.Time { return time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC) }

	rows, err := job.Extract(context.Background())
	require.NoError(t, err)

	records, err := job.Transform(rows)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, 7, record["org_id"])
	assert.Equal(t, 2026, record["year"])
	assert.Equal(t, 8, record["month"])
	assert.Equal(t, 90000.0, record["revenue"])
	assert.Equal(t, 65000.0, record["expenses"])
	assert.Equal(t, 25000.0, record["net_income"])
}

func TestCommunicationsZeroDayIsStillARow(t *testing.T) {
	meetings := &fakeMeetingSource{}
	job := NewCommunications(vitalOrg(), meetings)
	job.now = func() time.Time { return time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC) }

	rows, err := job.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Yesterday's date, not today's.
	assert.Equal(t, "2026-08-23", rows[0]["snapshot_date"])
	assert.Equal(t, time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC), meetings.day)

	records, err := job.Transform(rows)
	require.NoError(t, err)
	assert.Equal(t, 0, records[0]["meetings"])
	assert.Equal(t, 0, records[0]["meeting_minutes"])
}

func TestAppEngagementPassesOrgAndDay(t *testing.T) {
	events := &fakeAppEventSource{
		stats: connectors.EngagementStats{DailyActiveUsers: 340, Sessions: 910, Events: 12400},
	}
	job := NewAppEngagement(vitalOrg(), events)
	job.now = func() time.Time { return time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC) }

	rows, err := job.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, events.orgID)

	records, err := job.Transform(rows)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2026-08-23", records[0]["snapshot_date"])
	assert.Equal(t, 340, records[0]["daily_active_users"])
	assert.Equal(t, 910, records[0]["sessions"])
	assert.Equal(t, 12400, records[0]["events"])
}

func TestVitalJobsRequireTheirSources(t *testing.T) {
	_, err := NewFinancialSummary(vitalOrg(), nil).Extract(context.Background())
	assert.Error(t, err)

	_, err = NewCommunications(vitalOrg(), nil).Extract(context.Background())
	assert.Error(t, err)

	_, err = NewAppEngagement(vitalOrg(), nil).Extract(context.Background())
	assert.Error(t, err)
}

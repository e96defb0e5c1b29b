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

// AppEventSource yields one day of mobile app analytics for an organization.
type AppEventSource interface {
	Engagement(ctx context.Context, orgID int, day time.Time) (connectors.EngagementStats, error)
}

// AppEngagement lands yesterday's mobile analytics: daily active users,
// sessions, and raw event volume. One row per day.
type AppEngagement struct {
	org    models.Organization
	events AppEventSource
	now    func() time.Time
}

func NewAppEngagement(org models.Organization, events AppEventSource) *AppEngagement {
	return &AppEngagement{org: org, events: events, now: time.Now}
}

func (j *AppEngagement) Name() string         { return "app_engagement" }
func (j *AppEngagement) SourceSystem() string { return "bigquery" }
func (j *AppEngagement) TargetTable() string  { return "mart_app_engagement" }

func (j *AppEngagement) Extract(ctx context.Context) ([]database.Row, error) {
	if j.events == nil {
		return nil, errors.New("app engagement: no event source configured")
	}

	day := j.now().AddDate(0, 0, -1)
	stats, err := j.events.Engagement(ctx, j.org.ID, day)
	if err != nil {
		return nil, errors.Wrap(err, "fetch app engagement")
	}

	return []database.Row{{
		"snapshot_date":      day.Format("2006-01-02"),
		"daily_active_users": stats.DailyActiveUsers,
		"sessions":           stats.Sessions,
		"events":             stats.Events,
	}}, nil
}

func (j *AppEngagement) Transform(rows []database.Row) ([]database.Row, error) {
	records := make([]database.Row, 0, len(rows))
	for _, row := range rows {
		records = append(records, database.Row{
			"org_id":             j.org.ID,
			"snapshot_date":      asString(row["snapshot_date"]),
			"daily_active_users": asInt(row["daily_active_users"]),
			"sessions":           asInt(row["sessions"]),
			"events":             asInt(row["events"]),
		})
	}
	return records, nil
}

func (j *AppEngagement) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "snapshot_date"}); err != nil {
			return err
		}
	}
	return nil
}

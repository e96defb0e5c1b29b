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

// MeetingSource yields one day of meeting activity.
type MeetingSource interface {
	Usage(ctx context.Context, day time.Time) (connectors.DailyUsage, error)
}

// Communications lands yesterday's meeting activity, one row per day. A day
// with no meetings is a legitimate zero row, not an empty run.
type Communications struct {
	org      models.Organization
	meetings MeetingSource
	now      func() time.Time
}

func NewCommunications(org models.Organization, meetings MeetingSource) *Communications {
	return &Communications{org: org, meetings: meetings, now: time.Now}
}

func (j *Communications) Name() string         { return "communications" }
func (j *Communications) SourceSystem() string { return "zoom" }
func (j *Communications) TargetTable() string  { return "mart_communications_activity" }

func (j *Communications) Extract(ctx context.Context) ([]database.Row, error) {
	if j.meetings == nil {
		return nil, errors.New("communications: no meeting source configured")
	}

	day := j.now().AddDate(0, 0, -1)
	usage, err := j.meetings.Usage(ctx, day)
	if err != nil {
		return nil, errors.Wrap(err, "fetch meeting usage")
	}

	return []database.Row{{
		"snapshot_date":   day.Format("2006-01-02"),
		"meetings":        usage.Meetings,
		"participants":    usage.Participants,
		"meeting_minutes": usage.MeetingMinutes,
	}}, nil
}

func (j *Communications) Transform(rows []database.Row) ([]database.Row, error) {
	records := make([]database.Row, 0, len(rows))
	for _, row := range rows {
		records = append(records, database.Row{
			"org_id":          j.org.ID,
			"snapshot_date":   asString(row["snapshot_date"]),
			"meetings":        asInt(row["meetings"]),
			"participants":    asInt(row["participants"]),
			"meeting_minutes": asInt(row["meeting_minutes"]),
		})
	}
	return records, nil
}

func (j *Communications) Load(ctx context.Context, records []database.Row, loader *etl.Loader) error {
	for _, record := range records {
		if _, err := loader.Upsert(ctx, record, []string{"org_id", "snapshot_date"}); err != nil {
			return err
		}
	}
	return nil
}

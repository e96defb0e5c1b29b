package connectors

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/martforge/martforge-api/internal/config"
	"github.com/martforge/martforge-api/internal/database"
)

// EngagementStats is one day of mobile app activity for one organization.
type EngagementStats struct {
	DailyActiveUsers int64
	Sessions         int64
	Events           int64
}

// BigQueryClient reads the VITAL mobile analytics event export.
type BigQueryClient struct {
	client  *bigquery.Client
	dataset string
}

func NewBigQueryClient(ctx context.Context, cfg config.BigQueryConfig) (*BigQueryClient, error) {
	if !database.ValidIdent(cfg.Dataset) {
		return nil, fmt.Errorf("invalid BigQuery dataset name %q", cfg.Dataset)
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create BigQuery client")
	}
	return &BigQueryClient{client: client, dataset: cfg.Dataset}, nil
}

type engagementRow struct {
	DAU      int64 `bigquery:"dau"`
	Sessions int64 `bigquery:"sessions"`
	Events   int64 `bigquery:"events"`
}

// Engagement aggregates a day of app events for one organization.
func (c *BigQueryClient) Engagement(ctx context.Context, orgID int, day time.Time) (EngagementStats, error) {
	q := c.client.Query(fmt.Sprintf(`
		SELECT
			COUNT(DISTINCT user_id)    AS dau,
			COUNT(DISTINCT session_id) AS sessions,
			COUNT(*)                   AS events
		FROM %s.app_events
		WHERE org_id = @org_id
		  AND DATE(event_timestamp) = @day`, c.dataset))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "org_id", Value: orgID},
		{Name: "day", Value: day.Format("2006-01-02")},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return EngagementStats{}, errors.Wrap(err, "read app events")
	}

	var row engagementRow
	if err := it.Next(&row); err != nil {
		if err == iterator.Done {
			return EngagementStats{}, nil
		}
		return EngagementStats{}, errors.Wrap(err, "scan app events")
	}
	return EngagementStats{
		DailyActiveUsers: row.DAU,
		Sessions:         row.Sessions,
		Events:           row.Events,
	}, nil
}

func (c *BigQueryClient) Close() error {
	return c.client.Close()
}

package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/config"
)

// DailyUsage is one day's meeting activity across the account.
type DailyUsage struct {
	Meetings       int
	Participants   int
	MeetingMinutes int
}

type ZoomClient struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
}

func NewZoomClient(cfg config.ZoomConfig, logger zerolog.Logger) *ZoomClient {
	return &ZoomClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  newHTTPClient(logger.With().Str("connector", "zoom").Logger()),
	}
}

type zoomDailyReport struct {
	Dates []struct {
		Date           string `json:"date"`
		Meetings       int    `json:"meetings"`
		Participants   int    `json:"participants"`
		MeetingMinutes int    `json:"meeting_minutes"`
	} `json:"dates"`
}

// Usage returns the account's activity for a single day. A day absent from
// the report is zero activity, not an error.
func (c *ZoomClient) Usage(ctx context.Context, day time.Time) (DailyUsage, error) {
	endpoint := fmt.Sprintf("%s/report/daily?year=%d&month=%d", c.baseURL, day.Year(), int(day.Month()))

	var report zoomDailyReport
	if err := getJSON(ctx, c.client, endpoint, c.token, &report); err != nil {
		return DailyUsage{}, err
	}

	want := day.Format("2006-01-02")
	for _, entry := range report.Dates {
		if entry.Date == want {
			return DailyUsage{
				Meetings:       entry.Meetings,
				Participants:   entry.Participants,
				MeetingMinutes: entry.MeetingMinutes,
			}, nil
		}
	}
	return DailyUsage{}, nil
}

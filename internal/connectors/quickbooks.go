package connectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/config"
)

// ProfitAndLoss is a month's income statement summary. Fields default to
// zero when the report omits a section.
type ProfitAndLoss struct {
	TotalRevenue  float64
	TotalExpenses float64
	NetIncome     float64
}

type QuickBooksClient struct {
	baseURL string
	realmID string
	token   string
	client  *retryablehttp.Client
}

func NewQuickBooksClient(cfg config.QuickBooksConfig, logger zerolog.Logger) *QuickBooksClient {
	return &QuickBooksClient{
		baseURL: cfg.BaseURL,
		realmID: cfg.RealmID,
		token:   cfg.Token,
		client:  newHTTPClient(logger.With().Str("connector", "quickbooks").Logger()),
	}
}

// qbReport mirrors just enough of the QuickBooks report payload to pull the
// summary line of each top-level section.
type qbReport struct {
	Rows struct {
		Row []qbRow `json:"Row"`
	} `json:"Rows"`
}

type qbRow struct {
	Group   string `json:"group"`
	Summary *struct {
		ColData []struct {
			Value string `json:"value"`
		} `json:"ColData"`
	} `json:"Summary"`
}

// ProfitAndLoss fetches the P&L report for the given period.
func (c *QuickBooksClient) ProfitAndLoss(ctx context.Context, start, end time.Time) (ProfitAndLoss, error) {
	query := url.Values{}
	query.Set("start_date", start.Format("2006-01-02"))
	query.Set("end_date", end.Format("2006-01-02"))

	endpoint := fmt.Sprintf("%s/v3/company/%s/reports/ProfitAndLoss?%s", c.baseURL, c.realmID, query.Encode())

	var report qbReport
	if err := getJSON(ctx, c.client, endpoint, c.token, &report); err != nil {
		return ProfitAndLoss{}, err
	}

	// Missing sections (a month with no expenses, say) simply stay zero.
	var pl ProfitAndLoss
	for _, row := range report.Rows.Row {
		value := summaryValue(row)
		switch row.Group {
		case "Income":
			pl.TotalRevenue = value
		case "Expenses":
			pl.TotalExpenses = value
		case "NetIncome":
			pl.NetIncome = value
		}
	}
	if pl.NetIncome == 0 {
		pl.NetIncome = pl.TotalRevenue - pl.TotalExpenses
	}
	return pl, nil
}

// summaryValue pulls the numeric amount off a section's summary line; the
// amount is the last column.
func summaryValue(row qbRow) float64 {
	if row.Summary == nil || len(row.Summary.ColData) == 0 {
		return 0
	}
	raw := row.Summary.ColData[len(row.Summary.ColData)-1].Value
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}

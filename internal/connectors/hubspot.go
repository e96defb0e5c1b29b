package connectors

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/config"
)

const hubspotPageSize = 100

// Deal is one HubSpot CRM deal. Properties are whatever the portal exposes;
// consumers must tolerate missing keys.
type Deal struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

type HubSpotClient struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
}

func NewHubSpotClient(cfg config.HubSpotConfig, logger zerolog.Logger) *HubSpotClient {
	return &HubSpotClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  newHTTPClient(logger.With().Str("connector", "hubspot").Logger()),
	}
}

type dealPage struct {
	Results []Deal `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// ListDeals pages through every deal in the portal.
func (c *HubSpotClient) ListDeals(ctx context.Context) ([]Deal, error) {
	var deals []Deal
	after := ""
	for {
		query := url.Values{}
		query.Set("limit", fmt.Sprintf("%d", hubspotPageSize))
		query.Set("properties", "amount,dealstage,closedate,dealname")
		if after != "" {
			query.Set("after", after)
		}

		var page dealPage
		endpoint := fmt.Sprintf("%s/crm/v3/objects/deals?%s", c.baseURL, query.Encode())
		if err := getJSON(ctx, c.client, endpoint, c.token, &page); err != nil {
			return nil, err
		}
		deals = append(deals, page.Results...)

		if page.Paging == nil || page.Paging.Next == nil || page.Paging.Next.After == "" {
			return deals, nil
		}
		after = page.Paging.Next.After
	}
}

// Package venue fetches the market operator's master listing: the full
// snapshot of currently listed instruments with their sector and market
// segment classification.
package venue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/internal/transport"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/identity"
	"github.com/toriidata/filermap/pkg/logging"
)

// Client fetches the venue's current listing snapshot.
type Client struct {
	transport *transport.Client
	logger    *zerolog.Logger
}

// Config configures the venue client.
type Config struct {
	BaseURL string
	APIKey  string
}

// New creates a venue client.
func New(cfg Config, logger *zerolog.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	var auth transport.Authenticator
	if cfg.APIKey != "" {
		auth = &transport.BearerAuth{}
	}
	return &Client{
		transport: transport.New(transport.Config{
			Source:  "venue",
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Auth:    auth,
		}, logger),
		logger: logger,
	}
}

type listingResponse struct {
	Info []listingRow `json:"info"`
	Date string       `json:"date"`
}

type listingRow struct {
	Code          string `json:"Code"`
	CompanyName   string `json:"CompanyName"`
	CompanyNameEn string `json:"CompanyNameEnglish"`
	Sector        string `json:"Sector33CodeName"`
	MarketSegment string `json:"MarketCodeName"`
}

// FetchCurrentListing returns the full snapshot as venue observations, all
// stamped with the snapshot's effective time. Callers treat the batch as a
// complete listing: absence from it is meaningful.
func (c *Client) FetchCurrentListing(ctx context.Context) ([]entity.Observation, error) {
	body, err := c.transport.Get(ctx, "/listed/info", nil)
	if err != nil {
		return nil, err
	}

	var resp listingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WrapParse("json", "venue listing", err)
	}

	observedAt := utc.Now()
	if resp.Date != "" {
		if t, err := time.Parse("2006-01-02", resp.Date); err == nil {
			observedAt = utc.New(t)
		}
	}

	obs := make([]entity.Observation, 0, len(resp.Info))
	for _, row := range resp.Info {
		code := identity.Normalize(row.Code)
		if code == identity.Absent {
			continue
		}
		obs = append(obs, entity.Observation{
			Source:        entity.SourceVenue,
			SecurityCode:  code,
			DisplayName:   row.CompanyName,
			DisplayNameEn: row.CompanyNameEn,
			Sector:        row.Sector,
			MarketSegment: row.MarketSegment,
			Active:        entity.True,
			ObservedAt:    observedAt,
		})
	}
	c.logger.Info().Int("instruments", len(obs)).Msg("Fetched venue listing snapshot")
	return obs, nil
}

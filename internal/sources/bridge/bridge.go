// Package bridge fetches the retired-to-surviving filer code mappings
// published after mergers and absorptions.
package bridge

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/internal/transport"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
)

// Client fetches retired filer code mappings.
type Client struct {
	transport *transport.Client
	logger    *zerolog.Logger
}

// Config configures the bridge client.
type Config struct {
	BaseURL string
}

// New creates a bridge client.
func New(cfg Config, logger *zerolog.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		transport: transport.New(transport.Config{
			Source:  "bridge",
			BaseURL: cfg.BaseURL,
		}, logger),
		logger: logger,
	}
}

type mappingResponse struct {
	Mappings []mappingRow `json:"mappings"`
}

type mappingRow struct {
	RetiredCode   string `json:"retired_code"`
	SurvivingCode string `json:"surviving_code"`
}

// FetchRetiredMappings returns the retired-to-surviving filer code map.
// Self-referential rows are dropped; they would make the resolver spin.
func (c *Client) FetchRetiredMappings(ctx context.Context) (map[string]string, error) {
	body, err := c.transport.Get(ctx, "/aggregation/mappings.json", nil)
	if err != nil {
		return nil, err
	}

	var resp mappingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WrapParse("json", "bridge mappings", err)
	}

	mappings := make(map[string]string, len(resp.Mappings))
	for _, row := range resp.Mappings {
		if row.RetiredCode == "" || row.SurvivingCode == "" || row.RetiredCode == row.SurvivingCode {
			continue
		}
		mappings[row.RetiredCode] = row.SurvivingCode
	}
	c.logger.Debug().Int("mappings", len(mappings)).Msg("Fetched aggregation bridge mappings")
	return mappings, nil
}

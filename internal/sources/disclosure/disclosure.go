// Package disclosure talks to the regulator's disclosure API: the daily
// document list endpoint and the per-document download endpoint.
package disclosure

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/internal/transport"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/identity"
	"github.com/toriidata/filermap/pkg/logging"
)

// Document kinds for the download endpoint.
const (
	KindMain       = "1"
	KindEnglish    = "2"
	KindAttachment = "3"
	KindCSV        = "5"
)

// Client fetches document lists and document archives.
type Client struct {
	transport *transport.Client
	logger    *zerolog.Logger
}

// Config configures the disclosure client.
type Config struct {
	BaseURL string
	APIKey  string
}

// New creates a disclosure client. The API key is mandatory; the API
// rejects anonymous list requests.
func New(cfg Config, logger *zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.ErrAPIKeyRequired
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		transport: transport.New(transport.Config{
			Source:  "disclosure",
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Auth:    &transport.QueryAuth{Param: "Subscription-Key"},
		}, logger),
		logger: logger,
	}, nil
}

// listResponse mirrors the wire shape of the list endpoint. Unknown fields
// are ignored on purpose; the API grows fields without notice.
type listResponse struct {
	Results []listResult `json:"results"`
}

type listResult struct {
	DocID            string `json:"docID"`
	EdinetCode       string `json:"edinetCode"`
	SecCode          string `json:"secCode"`
	JCN              string `json:"JCN"`
	FilerName        string `json:"filerName"`
	DocTypeCode      string `json:"docTypeCode"`
	DocDescription   string `json:"docDescription"`
	SubmitDateTime   string `json:"submitDateTime"`
	PeriodStart      string `json:"periodStart"`
	PeriodEnd        string `json:"periodEnd"`
	ParentDocID      string `json:"parentDocID"`
	WithdrawalStatus string `json:"withdrawalStatus"`
}

// FetchDocumentList returns the document catalog rows for one date. The
// since filter drops documents submitted at or before it, which lets an
// intraday re-poll fetch only what is new.
func (c *Client) FetchDocumentList(ctx context.Context, date time.Time, since time.Time) ([]entity.DocumentRow, error) {
	body, err := c.transport.Get(ctx, "/documents.json", map[string]string{
		"date": date.Format("2006-01-02"),
		"type": "2", // list with metadata
	})
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.WrapParse("json", "document list", err)
	}

	rows := make([]entity.DocumentRow, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.DocID == "" {
			continue
		}
		submitted, err := parseSubmitTime(r.SubmitDateTime)
		if err != nil {
			c.logger.Warn().Str("doc_id", r.DocID).Str("submitted", r.SubmitDateTime).Msg("Skipping document with unparseable submit time")
			continue
		}
		if !since.IsZero() && !submitted.After(since) {
			continue
		}
		rows = append(rows, entity.DocumentRow{
			DocID:            r.DocID,
			FilerCode:        r.EdinetCode,
			SecurityCode:     identity.Normalize(r.SecCode),
			CorporateNumber:  r.JCN,
			FilerName:        r.FilerName,
			SubmittedAt:      utc.New(submitted),
			PeriodStart:      r.PeriodStart,
			PeriodEnd:        r.PeriodEnd,
			DocType:          r.DocTypeCode,
			Title:            r.DocDescription,
			IsAmendment:      r.ParentDocID != "",
			ParentDocID:      r.ParentDocID,
			WithdrawalStatus: r.WithdrawalStatus,
		})
	}
	return rows, nil
}

// ListByDate satisfies the discovery scan's lister interface.
func (c *Client) ListByDate(ctx context.Context, date time.Time) ([]entity.DocumentRow, error) {
	return c.FetchDocumentList(ctx, date, time.Time{})
}

// FetchDocument streams one document archive of the given kind. The caller
// owns closing the reader.
func (c *Client) FetchDocument(ctx context.Context, docID, kind string) (io.ReadCloser, error) {
	if docID == "" {
		return nil, errors.NewValidationError("doc_id", docID, "document id is required")
	}
	if kind == "" {
		kind = KindMain
	}
	return c.transport.DownloadStream(ctx, "/documents/"+docID, map[string]string{"type": kind})
}

// parseSubmitTime parses the API's local-time submit stamps. The source
// timezone is JST regardless of where the engine runs.
func parseSubmitTime(s string) (time.Time, error) {
	loc := time.FixedZone("JST", 9*60*60)
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.NewValidationError("submit_time", s, "unrecognized timestamp layout")
}

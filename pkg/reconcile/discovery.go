package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/identity"
	"github.com/toriidata/filermap/pkg/logging"
)

// DocumentLister provides per-day disclosure document lists for discovery.
type DocumentLister interface {
	ListByDate(ctx context.Context, date time.Time) ([]entity.DocumentRow, error)
}

// Match carries the regulator identifiers recovered for a security code.
type Match struct {
	FilerCode       string
	CorporateNumber string
	FilerName       string
	EvidenceDocID   string
}

// Discoverer recovers regulator identifiers for newly listed securities by
// scanning recent disclosure lists. A fresh listing's IPO paperwork always
// lands within days of the listing, so a bounded backward scan finds the
// filer code before the periodic registry catches up.
type Discoverer struct {
	lister     DocumentLister
	windowDays int
	logger     *zerolog.Logger
}

// NewDiscoverer creates a discoverer scanning at most windowDays back.
// A non-positive window uses the default.
func NewDiscoverer(lister DocumentLister, windowDays int, logger *zerolog.Logger) *Discoverer {
	if windowDays <= 0 {
		windowDays = constants.DiscoveryWindowDays
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Discoverer{lister: lister, windowDays: windowDays, logger: logger}
}

// Discover scans backwards from asOf for a document whose security code
// matches, newest day first. It returns a NotFoundError when the window is
// exhausted; transient listing failures abort the scan so a flaky day does
// not silently shrink the window.
func (d *Discoverer) Discover(ctx context.Context, code identity.Code, asOf time.Time) (*Match, error) {
	if code == identity.Absent {
		return nil, errors.NewValidationError("security_code", code, "cannot discover an absent code")
	}

	day := asOf.UTC().Truncate(24 * time.Hour)
	for i := 0; i < d.windowDays; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		docs, err := d.lister.ListByDate(ctx, day)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			doc := &docs[i]
			if identity.Normalize(string(doc.SecurityCode)) != code || doc.FilerCode == "" {
				continue
			}
			d.logger.Info().
				Str("security_code", string(code)).
				Str("filer_code", doc.FilerCode).
				Str("doc_id", doc.DocID).
				Msg("Discovered regulator identifiers for new listing")
			return &Match{
				FilerCode:       doc.FilerCode,
				CorporateNumber: doc.CorporateNumber,
				FilerName:       doc.FilerName,
				EvidenceDocID:   doc.DocID,
			}, nil
		}
		day = day.AddDate(0, 0, -1)
	}
	return nil, errors.NewNotFoundError("filer for security code", string(code))
}

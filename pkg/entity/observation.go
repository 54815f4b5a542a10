package entity

import (
	"github.com/agentstation/utc"

	"github.com/toriidata/filermap/pkg/identity"
)

// SourceKind identifies which external source produced an observation.
// Attribute resolution uses a strict priority order across kinds.
type SourceKind string

// Source kinds, in descending default authority for identity attributes.
const (
	// SourceRealtime is the regulator's real-time lookup by security code,
	// preferred for freshly listed entities whose registry attributes are
	// not yet synced.
	SourceRealtime SourceKind = "realtime"

	// SourceRegistry is the regulator's periodic filer registry, the
	// source of truth for name and registered/active status.
	SourceRegistry SourceKind = "registry"

	// SourceVenue is the market operator's master list, the source of
	// truth for sector and market-segment classification.
	SourceVenue SourceKind = "venue"
)

// Observation is one raw source record proposed by a worker: a snapshot of
// what a single source currently claims about one filer or issuer.
type Observation struct {
	Source SourceKind `json:"source" yaml:"source"`

	SecurityCode    identity.Code `json:"security_code,omitempty" yaml:"security_code,omitempty"`
	FilerCode       string        `json:"filer_code,omitempty" yaml:"filer_code,omitempty"`
	CorporateNumber string        `json:"corporate_number,omitempty" yaml:"corporate_number,omitempty"`

	DisplayName   string   `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	DisplayNameEn string   `json:"display_name_en,omitempty" yaml:"display_name_en,omitempty"`
	Sector        string   `json:"sector,omitempty" yaml:"sector,omitempty"`
	MarketSegment string   `json:"market_segment,omitempty" yaml:"market_segment,omitempty"`
	Active        Tristate `json:"active" yaml:"active"`

	// ObservedAt is the evidence timestamp used for stale-write rejection
	// and keep-latest de-duplication. It comes from the source material,
	// never from the wall clock of the worker.
	ObservedAt  utc.Time `json:"observed_at" yaml:"observed_at"`
	EvidenceRef string   `json:"evidence_ref,omitempty" yaml:"evidence_ref,omitempty"`
}

// DocumentRow is one disclosure document's catalog record.
type DocumentRow struct {
	DocID           string        `json:"doc_id" yaml:"doc_id"`
	FilerCode       string        `json:"filer_code,omitempty" yaml:"filer_code,omitempty"`
	SecurityCode    identity.Code `json:"security_code,omitempty" yaml:"security_code,omitempty"`
	CorporateNumber string        `json:"corporate_number,omitempty" yaml:"corporate_number,omitempty"`
	FilerName       string        `json:"filer_name,omitempty" yaml:"filer_name,omitempty"`

	SubmittedAt utc.Time `json:"submitted_at" yaml:"submitted_at"`
	PeriodStart string   `json:"period_start,omitempty" yaml:"period_start,omitempty"`
	PeriodEnd   string   `json:"period_end,omitempty" yaml:"period_end,omitempty"`

	DocType     string `json:"doc_type,omitempty" yaml:"doc_type,omitempty"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	IsAmendment bool   `json:"is_amendment,omitempty" yaml:"is_amendment,omitempty"`
	ParentDocID string `json:"parent_doc_id,omitempty" yaml:"parent_doc_id,omitempty"`

	// WithdrawalStatus "1" marks a withdrawn filing; withdrawn documents
	// stay in the catalog for auditability.
	WithdrawalStatus string `json:"withdrawal_status,omitempty" yaml:"withdrawal_status,omitempty"`
}

// DeltaPayload is a worker's proposed contribution for one chunk: raw
// observations plus document catalog rows. The payload is owned by the
// delta store until consumed by exactly one merge.
type DeltaPayload struct {
	Observations []Observation `json:"observations,omitempty" yaml:"observations,omitempty"`
	Documents    []DocumentRow `json:"documents,omitempty" yaml:"documents,omitempty"`
	ProducedAt   utc.Time      `json:"produced_at" yaml:"produced_at"`

	// VenueSnapshot marks the observations as a complete venue listing.
	// Only a complete snapshot lets absence imply delisting.
	VenueSnapshot bool `json:"venue_snapshot,omitempty" yaml:"venue_snapshot,omitempty"`
}

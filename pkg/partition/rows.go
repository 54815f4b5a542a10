// Package partition owns the physical layout of the master dataset: flat
// columnar row schemas, the shard path contract, and the merge that turns
// prior shard files plus incoming rows into full replacement files. Shards
// are never appended in place; every merge rewrites the affected shard
// completely so a reader always sees one consistent generation.
package partition

import (
	"time"

	"github.com/agentstation/utc"

	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/identity"
)

// Master table names under the master/ prefix.
const (
	TableDocuments = "documents"
)

// Fixed columnar blobs under the meta/ prefix.
const (
	EntityTablePath = "meta/entities.parquet"
	EventTablePath  = "meta/events.parquet"
)

// DocumentRow is the columnar form of one disclosure document record.
type DocumentRow struct {
	DocID           string `parquet:"doc_id"`
	FilerCode       string `parquet:"filer_code,optional"`
	SecurityCode    string `parquet:"security_code,optional"`
	CorporateNumber string `parquet:"corporate_number,optional"`
	FilerName       string `parquet:"filer_name,optional"`

	SubmittedAtMillis int64  `parquet:"submitted_at_millis"`
	PeriodStart       string `parquet:"period_start,optional"`
	PeriodEnd         string `parquet:"period_end,optional"`

	DocType          string `parquet:"doc_type,optional"`
	Title            string `parquet:"title,optional"`
	IsAmendment      bool   `parquet:"is_amendment"`
	ParentDocID      string `parquet:"parent_doc_id,optional"`
	WithdrawalStatus string `parquet:"withdrawal_status,optional"`
}

// EntityRow is the columnar form of one consolidated entity.
type EntityRow struct {
	CorporateNumber  string   `parquet:"corporate_number,optional"`
	SecurityCode     string   `parquet:"security_code,optional"`
	FilerCode        string   `parquet:"filer_code,optional"`
	DisplayName      string   `parquet:"display_name,optional"`
	DisplayNameEn    string   `parquet:"display_name_en,optional"`
	Sector           string   `parquet:"sector,optional"`
	MarketSegment    string   `parquet:"market_segment,optional"`
	IsActive         *bool    `parquet:"is_active,optional"`
	ParentCode       string   `parquet:"parent_code,optional"`
	FormerFilerCodes []string `parquet:"former_filer_codes,list"`
	EverActive       bool     `parquet:"ever_active"`

	LastConfirmedAtMillis int64  `parquet:"last_confirmed_at_millis"`
	ShardKey              string `parquet:"shard_key"`
}

// EventRow is the columnar form of one lifecycle event.
type EventRow struct {
	EntityKey        string `parquet:"entity_key"`
	Kind             string `parquet:"kind"`
	OccurredAtMillis int64  `parquet:"occurred_at_millis"`
	EvidenceRef      string `parquet:"evidence_ref,optional"`
	OldValue         string `parquet:"old_value,optional"`
	NewValue         string `parquet:"new_value,optional"`
}

// NewDocumentRow flattens a document record for columnar storage.
func NewDocumentRow(d *entity.DocumentRow) DocumentRow {
	return DocumentRow{
		DocID:             d.DocID,
		FilerCode:         d.FilerCode,
		SecurityCode:      string(d.SecurityCode),
		CorporateNumber:   d.CorporateNumber,
		FilerName:         d.FilerName,
		SubmittedAtMillis: d.SubmittedAt.UnixMilli(),
		PeriodStart:       d.PeriodStart,
		PeriodEnd:         d.PeriodEnd,
		DocType:           d.DocType,
		Title:             d.Title,
		IsAmendment:       d.IsAmendment,
		ParentDocID:       d.ParentDocID,
		WithdrawalStatus:  d.WithdrawalStatus,
	}
}

// Document restores the domain form of a stored row.
func (r DocumentRow) Document() entity.DocumentRow {
	return entity.DocumentRow{
		DocID:            r.DocID,
		FilerCode:        r.FilerCode,
		SecurityCode:     identity.Code(r.SecurityCode),
		CorporateNumber:  r.CorporateNumber,
		FilerName:        r.FilerName,
		SubmittedAt:      utc.New(time.UnixMilli(r.SubmittedAtMillis)),
		PeriodStart:      r.PeriodStart,
		PeriodEnd:        r.PeriodEnd,
		DocType:          r.DocType,
		Title:            r.Title,
		IsAmendment:      r.IsAmendment,
		ParentDocID:      r.ParentDocID,
		WithdrawalStatus: r.WithdrawalStatus,
	}
}

// ShardToken derives the row's shard. The token is computed from the same
// identifiers as entity shard assignment so documents and entities co-locate.
func (r DocumentRow) ShardToken() string {
	return identity.ShardKey(r.CorporateNumber, r.FilerCode)
}

// NewEntityRow flattens a consolidated entity for columnar storage.
func NewEntityRow(e *entity.Entity) EntityRow {
	row := EntityRow{
		CorporateNumber:  e.CorporateNumber,
		SecurityCode:     string(e.SecurityCode),
		FilerCode:        e.FilerCode,
		DisplayName:      e.DisplayName,
		DisplayNameEn:    e.DisplayNameEn,
		Sector:           e.Sector,
		MarketSegment:    e.MarketSegment,
		IsActive:         e.IsActive.Ptr(),
		ParentCode:       string(e.ParentCode),
		FormerFilerCodes: e.FormerFilerCodes,
		EverActive:       e.EverActive,
		ShardKey:         e.ShardKey,
	}
	if !e.LastConfirmedAt.IsZero() {
		row.LastConfirmedAtMillis = e.LastConfirmedAt.UnixMilli()
	}
	return row
}

// Entity restores the domain form of a stored row.
func (r EntityRow) Entity() entity.Entity {
	e := entity.Entity{
		CorporateNumber:  r.CorporateNumber,
		SecurityCode:     identity.Code(r.SecurityCode),
		FilerCode:        r.FilerCode,
		DisplayName:      r.DisplayName,
		DisplayNameEn:    r.DisplayNameEn,
		Sector:           r.Sector,
		MarketSegment:    r.MarketSegment,
		IsActive:         entity.TristateFromPtr(r.IsActive),
		ParentCode:       identity.Code(r.ParentCode),
		FormerFilerCodes: r.FormerFilerCodes,
		EverActive:       r.EverActive,
		ShardKey:         r.ShardKey,
	}
	if r.LastConfirmedAtMillis != 0 {
		e.LastConfirmedAt = utc.New(time.UnixMilli(r.LastConfirmedAtMillis))
	}
	return e
}

// NewEventRow flattens a lifecycle event for columnar storage.
func NewEventRow(ev *entity.LifecycleEvent) EventRow {
	return EventRow{
		EntityKey:        ev.EntityKey,
		Kind:             string(ev.Kind),
		OccurredAtMillis: ev.OccurredAt.UnixMilli(),
		EvidenceRef:      ev.EvidenceRef,
		OldValue:         ev.OldValue,
		NewValue:         ev.NewValue,
	}
}

// Event restores the domain form of a stored row.
func (r EventRow) Event() entity.LifecycleEvent {
	return entity.LifecycleEvent{
		EntityKey:   r.EntityKey,
		Kind:        entity.EventKind(r.Kind),
		OccurredAt:  utc.New(time.UnixMilli(r.OccurredAtMillis)),
		EvidenceRef: r.EvidenceRef,
		OldValue:    r.OldValue,
		NewValue:    r.NewValue,
	}
}

// Package entity defines the canonical data model of the filermap engine:
// legal filers and issuers over their entire lifetime, the append-only
// lifecycle events derived for them, and the raw observations and delta
// payloads that workers contribute.
package entity

import (
	"github.com/agentstation/utc"

	"github.com/toriidata/filermap/pkg/identity"
)

// Entity is one legal filer or issuer over its entire lifetime. The
// corporate number is the primary durable key; it may be absent for
// pre-registration entities. Security and filer codes are display
// identifiers that change across corporate events and must never drive
// shard placement.
type Entity struct {
	CorporateNumber string        `json:"corporate_number,omitempty" yaml:"corporate_number,omitempty"`
	SecurityCode    identity.Code `json:"security_code,omitempty" yaml:"security_code,omitempty"`
	FilerCode       string        `json:"filer_code,omitempty" yaml:"filer_code,omitempty"`

	DisplayName   string `json:"display_name" yaml:"display_name"`
	DisplayNameEn string `json:"display_name_en,omitempty" yaml:"display_name_en,omitempty"`
	Sector        string `json:"sector,omitempty" yaml:"sector,omitempty"`
	MarketSegment string `json:"market_segment,omitempty" yaml:"market_segment,omitempty"`

	// IsActive is tri-state: a record carrying no activity evidence stays
	// Unknown rather than defaulting to false.
	IsActive Tristate `json:"is_active" yaml:"is_active"`

	// ParentCode links a subordinate share class to its common class.
	ParentCode identity.Code `json:"parent_code,omitempty" yaml:"parent_code,omitempty"`

	// FormerFilerCodes accumulates retired filer codes stitched onto this
	// entity through the aggregation bridge, oldest first.
	FormerFilerCodes []string `json:"former_filer_codes,omitempty" yaml:"former_filer_codes,omitempty"`

	// EverActive records that the entity has been observed active at least
	// once, so a later activation emits RE_LISTING rather than LISTING.
	EverActive bool `json:"ever_active,omitempty" yaml:"ever_active,omitempty"`

	// LastConfirmedAt guards against overwrite by stale data: an attribute
	// is only replaced by evidence at or after this timestamp.
	LastConfirmedAt utc.Time `json:"last_confirmed_at" yaml:"last_confirmed_at"`

	// ShardKey is assigned on first write and never changes, even when
	// display identifiers are later reassigned.
	ShardKey string `json:"shard_key" yaml:"shard_key"`
}

// Key returns the durable identity key: the corporate number when present,
// otherwise the filer code. Entities with neither never reach the master
// dataset (registration guard) unless exempted, in which case the security
// code stands in.
func (e *Entity) Key() string {
	if e.CorporateNumber != "" {
		return e.CorporateNumber
	}
	if e.FilerCode != "" {
		return e.FilerCode
	}
	return e.SecurityCode.String()
}

// AssignShard computes and pins the shard key if not already assigned.
// Once pinned the key is immutable.
func (e *Entity) AssignShard() string {
	if e.ShardKey == "" {
		e.ShardKey = identity.ShardKey(e.CorporateNumber, e.FilerCode)
	}
	return e.ShardKey
}

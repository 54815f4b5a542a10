package entity

import (
	"github.com/agentstation/utc"
)

// EventKind identifies a lifecycle transition.
type EventKind string

// Lifecycle event kinds. The set is closed: consumers switch on it.
const (
	EventListing    EventKind = "LISTING"
	EventDelisting  EventKind = "DELISTING"
	EventRelisting  EventKind = "RE_LISTING"
	EventNameChange EventKind = "NAME_CHANGE"
	EventCodeChange EventKind = "CODE_CHANGE"
)

// LifecycleEvent is an immutable, append-only record of one transition in
// an entity's timeline. Events are never mutated or deleted once committed.
type LifecycleEvent struct {
	EntityKey   string    `json:"entity_key" yaml:"entity_key"`
	Kind        EventKind `json:"kind" yaml:"kind"`
	OccurredAt  utc.Time  `json:"occurred_at" yaml:"occurred_at"`
	EvidenceRef string    `json:"evidence_ref,omitempty" yaml:"evidence_ref,omitempty"`

	// OldValue/NewValue carry the before/after display value for
	// NAME_CHANGE and CODE_CHANGE events.
	OldValue string `json:"old_value,omitempty" yaml:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty" yaml:"new_value,omitempty"`
}

// DedupeKey identifies an event for idempotent re-commit: re-deriving the
// same transition from the same inputs must not duplicate the event.
func (ev *LifecycleEvent) DedupeKey() string {
	return ev.EntityKey + "|" + string(ev.Kind) + "|" + ev.OccurredAt.Format("2006-01-02") + "|" + ev.NewValue
}

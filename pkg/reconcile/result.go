package reconcile

import (
	"github.com/toriidata/filermap/pkg/entity"
)

// Input is one reconciliation batch: the prior committed entity state plus
// the raw observations proposed by the run's workers.
type Input struct {
	Entities     []entity.Entity
	Observations []entity.Observation

	// Retried carries quarantined observations from earlier runs back
	// through the guard. They reconcile after Observations, so a fresh
	// registration in this batch can claim them, but they are historical
	// evidence: they never count toward a snapshot's listed population.
	Retried []entity.Observation

	// VenueSnapshot marks the venue observations in this batch as a
	// complete listing snapshot. Only then does absence imply delisting.
	VenueSnapshot bool
}

// Result is the outcome of one reconciliation batch. Entities is the full
// replacement entity state; Events are the lifecycle transitions derived
// from it; Pending holds observations quarantined by the registration
// guard for a later run to retry.
type Result struct {
	Entities []entity.Entity
	Events   []entity.LifecycleEvent
	Pending  []entity.Observation
	Stats    Stats
}

// Stats counts what the batch did.
type Stats struct {
	Created                int `json:"created"`
	Updated                int `json:"updated"`
	StaleRejected          int `json:"stale_rejected"`
	Quarantined            int `json:"quarantined"`
	Bridged                int `json:"bridged"`
	Discovered             int `json:"discovered"`
	InheritedFromParent    int `json:"inherited_from_parent"`
	CorporateNumberChanges int `json:"corporate_number_changes"`
	SnapshotDelistings     int `json:"snapshot_delistings"`
}

// HasChanges reports whether the batch produced any state change.
func (s Stats) HasChanges() bool {
	return s.Created > 0 || s.Updated > 0 || s.SnapshotDelistings > 0
}

package catalog

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/agentstation/utc"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/repository"
)

// Lease is the marker that gives one merger exclusive ownership of a run.
type Lease struct {
	RunID      string `json:"run_id"`
	Owner      string `json:"owner"`
	AcquiredAt string `json:"acquired_at"`
	ExpiresAt  string `json:"expires_at"`
}

// LeasePath returns the lease marker path for a run.
func LeasePath(runID string) string {
	return path.Join(constants.MetaPrefix, "leases", runID+".json")
}

// AcquireLease claims a run for the given owner. A live lease held by
// another owner fails with ErrLeaseHeld; an expired one is taken over. The
// claim is revision-checked so two mergers racing for the same run cannot
// both win.
func (o *Orchestrator) AcquireLease(ctx context.Context, runID, owner string) (*Lease, error) {
	rev, err := o.repo.Revision(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := o.readLease(ctx, runID)
	if err != nil {
		return nil, err
	}
	now := o.now()
	if existing != nil && existing.Owner != owner {
		expires, parseErr := time.Parse(time.RFC3339, existing.ExpiresAt)
		if parseErr == nil && now.Before(utc.New(expires)) {
			return nil, errors.ErrLeaseHeld
		}
		o.logger.Warn().
			Str("run", runID).
			Str("previous_owner", existing.Owner).
			Msg("Taking over expired merge lease")
	}

	lease := &Lease{
		RunID:      runID,
		Owner:      owner,
		AcquiredAt: now.Format(time.RFC3339),
		ExpiresAt:  now.Add(constants.LeaseTTL).Format(time.RFC3339),
	}
	data, err := json.Marshal(lease)
	if err != nil {
		return nil, errors.WrapParse("json", "lease", err)
	}
	if _, err := o.repo.PutBatch(ctx, []repository.Put{
		{Path: LeasePath(runID), Data: data},
	}, rev); err != nil {
		return nil, err
	}
	return lease, nil
}

// ReleaseLease removes the run's lease marker. Releasing a lease that is
// already gone is not an error.
func (o *Orchestrator) ReleaseLease(ctx context.Context, runID string) error {
	return o.repo.Delete(ctx, LeasePath(runID))
}

func (o *Orchestrator) readLease(ctx context.Context, runID string) (*Lease, error) {
	data, err := o.repo.Get(ctx, LeasePath(runID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		return nil, errors.WrapParse("json", "lease", err)
	}
	return &lease, nil
}

package filermap

import (
	"context"
	"encoding/json"

	"github.com/gowebpki/jcs"

	"github.com/toriidata/filermap/pkg/catalog"
	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/partition"
	"github.com/toriidata/filermap/pkg/reconcile"
	"github.com/toriidata/filermap/pkg/repository"
)

// MergeResult summarizes one merge run.
type MergeResult struct {
	RunID  string          `json:"run_id"`
	Chunks int             `json:"chunks"`
	Stats  reconcile.Stats `json:"stats"`

	// Pending is how many observations the registration guard held back
	// for a later run.
	Pending int `json:"pending"`

	// AppendedEvents is how many lifecycle events this run added to the
	// timeline.
	AppendedEvents int `json:"appended_events"`

	// AlreadyCommitted reports that the run's completion marker existed
	// and the merge was skipped.
	AlreadyCommitted bool `json:"already_committed"`

	Index *catalog.Index `json:"index,omitempty"`
}

// Merge consumes the run's completed delta chunks, reconciles their
// observations against the committed entity state, folds their document
// rows into the master shards, and commits the new generation in one
// revision-checked batch. Exactly one merger owns a run: the run lease
// excludes concurrent mergers, and the completion marker makes a retried
// run a no-op instead of a double merge.
func (f *filermap) Merge(ctx context.Context, runID string) (*MergeResult, error) {
	if runID == "" {
		return nil, errors.NewValidationError("run_id", runID, "run id is required")
	}

	done, err := f.orchestrator.RunCompleted(ctx, runID)
	if err != nil {
		return nil, err
	}
	if done {
		f.logger.Info().Str("run", runID).Msg("Run already committed, skipping merge")
		return &MergeResult{RunID: runID, AlreadyCommitted: true}, nil
	}

	if _, err := f.orchestrator.AcquireLease(ctx, runID, f.config.owner); err != nil {
		return nil, err
	}
	defer func() {
		if err := f.orchestrator.ReleaseLease(context.WithoutCancel(ctx), runID); err != nil {
			f.logger.Warn().Err(err).Str("run", runID).Msg("Failed to release merge lease")
		}
	}()

	refs, err := f.deltas.ListReady(ctx, runID)
	if err != nil {
		return nil, err
	}

	var (
		observations []entity.Observation
		documents    []entity.DocumentRow
		snapshot     bool
	)
	for _, ref := range refs {
		payload, err := f.deltas.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		observations = append(observations, payload.Observations...)
		documents = append(documents, payload.Documents...)
		snapshot = snapshot || payload.VenueSnapshot
	}

	// Quarantined observations from earlier runs ride along with every
	// merge until the guard admits them.
	retry, err := f.loadPending(ctx)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 && len(retry) == 0 {
		f.logger.Info().Str("run", runID).Msg("No completed chunks, nothing to merge")
		return &MergeResult{RunID: runID}, nil
	}
	prior, err := partition.LoadEntityTable(ctx, f.repo)
	if err != nil {
		return nil, err
	}
	result, err := f.engine.Reconcile(ctx, reconcile.Input{
		Entities:      prior,
		Observations:  observations,
		Retried:       retry,
		VenueSnapshot: snapshot,
	})
	if err != nil {
		return nil, err
	}

	staged, appended, err := f.stage(ctx, result, documents)
	if err != nil {
		return nil, err
	}
	idx, err := f.orchestrator.CommitRun(ctx, runID, staged)
	if err != nil {
		return nil, err
	}
	if err := f.deltas.Consume(ctx, refs...); err != nil {
		return nil, err
	}

	f.logger.Info().
		Str("run", runID).
		Int("chunks", len(refs)).
		Int("created", result.Stats.Created).
		Int("updated", result.Stats.Updated).
		Int("stale_rejected", result.Stats.StaleRejected).
		Int("pending", len(result.Pending)).
		Msg("Merge run complete")

	return &MergeResult{
		RunID:          runID,
		Chunks:         len(refs),
		Stats:          result.Stats,
		Pending:        len(result.Pending),
		AppendedEvents: appended,
		Index:          idx,
	}, nil
}

// stage assembles the full replacement blobs for one commit: the touched
// master shards, the entity and event tables, and the rewritten pending
// bucket.
func (f *filermap) stage(ctx context.Context, result *reconcile.Result, documents []entity.DocumentRow) (catalog.Staged, int, error) {
	puts, err := f.merger.MergeDocuments(ctx, documents)
	if err != nil {
		return catalog.Staged{}, 0, err
	}

	entityPut, err := partition.StageEntityTable(result.Entities)
	if err != nil {
		return catalog.Staged{}, 0, err
	}
	priorEvents, err := partition.LoadEventTable(ctx, f.repo)
	if err != nil {
		return catalog.Staged{}, 0, err
	}
	eventPut, appended, err := partition.StageEventTable(ctx, f.repo, result.Events)
	if err != nil {
		return catalog.Staged{}, 0, err
	}
	pendingPut, err := stagePending(result.Pending)
	if err != nil {
		return catalog.Staged{}, 0, err
	}

	puts = append(puts, entityPut, eventPut, pendingPut)
	return catalog.Staged{
		Puts:        puts,
		EntityCount: len(result.Entities),
		EventCount:  len(priorEvents) + appended,
	}, appended, nil
}

// pendingBucket is the persisted quarantine: observations the guard held
// back, rewritten whole on every commit. No run metadata rides in it so
// the same pending set always stores the same bytes.
type pendingBucket struct {
	Observations []entity.Observation `json:"observations"`
}

func (f *filermap) loadPending(ctx context.Context) ([]entity.Observation, error) {
	data, err := f.repo.Get(ctx, constants.PendingPath)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var bucket pendingBucket
	if err := json.Unmarshal(data, &bucket); err != nil {
		return nil, errors.WrapParse("json", "pending bucket", err)
	}
	return bucket.Observations, nil
}

func stagePending(pending []entity.Observation) (repository.Put, error) {
	raw, err := json.Marshal(pendingBucket{Observations: pending})
	if err != nil {
		return repository.Put{}, errors.WrapParse("json", "pending bucket", err)
	}
	data, err := jcs.Transform(raw)
	if err != nil {
		return repository.Put{}, errors.WrapParse("json", "pending bucket", err)
	}
	return repository.Put{Path: constants.PendingPath, Data: data}, nil
}

package catalog

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/agentstation/utc"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
	"github.com/toriidata/filermap/pkg/repository"
)

// Staged is everything a merge run wants committed: the master shard and
// meta blobs plus the counts the index advertises.
type Staged struct {
	Puts        []repository.Put
	EntityCount int
	EventCount  int
}

// RunMarker records a completed run for operators and the auditor.
type RunMarker struct {
	RunID       string `json:"run_id"`
	CommittedAt string `json:"committed_at"`
	EntityCount int    `json:"entity_count"`
	EventCount  int    `json:"event_count"`
	Attempts    int    `json:"attempts"`
}

// Orchestrator drives the commit protocol against a repository.
type Orchestrator struct {
	repo       repository.Repository
	logger     *zerolog.Logger
	now        func() utc.Time
	maxRetries uint64
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(repo repository.Repository, logger *zerolog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		repo:       repo,
		logger:     logger,
		now:        utc.Now,
		maxRetries: constants.MaxCommitRetries,
	}
}

// CommitRun writes all staged blobs and the advanced index in one
// revision-checked batch. A concurrent writer surfaces as a revision
// conflict; the orchestrator re-reads the index and retries the whole
// batch with exponential backoff, so the committed index always extends
// the state that was actually current. Returns the committed index.
func (o *Orchestrator) CommitRun(ctx context.Context, runID string, staged Staged) (*Index, error) {
	if runID == "" {
		return nil, errors.NewValidationError("run_id", runID, "run id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var committed *Index
	attempts := 0
	op := func() error {
		attempts++

		rev, err := o.repo.Revision(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		idx, err := o.readIndex(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		idx.Advance(runID, o.now(), shardSizes(staged.Puts), staged.EntityCount, staged.EventCount)
		indexData, err := idx.Encode()
		if err != nil {
			return backoff.Permanent(err)
		}

		// The index rides last in the batch; the repository applies the
		// batch atomically either way.
		puts := make([]repository.Put, 0, len(staged.Puts)+1)
		puts = append(puts, staged.Puts...)
		puts = append(puts, repository.Put{Path: constants.CatalogIndexPath, Data: indexData})

		if _, err := o.repo.PutBatch(ctx, puts, rev); err != nil {
			if errors.IsConflict(err) {
				o.logger.Warn().Str("run", runID).Int("attempt", attempts).Msg("Commit lost revision race, retrying")
				return err
			}
			if errors.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		committed = idx
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(newCommitBackOff(), o.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}

	if err := o.writeRunMarker(ctx, runID, staged, attempts); err != nil {
		return nil, err
	}
	o.logger.Info().
		Str("run", runID).
		Int("blobs", len(staged.Puts)).
		Int("entities", staged.EntityCount).
		Int("attempts", attempts).
		Msg("Committed merge run")
	return committed, nil
}

// ReadIndex returns the committed catalog index. A missing index is an
// empty one.
func (o *Orchestrator) ReadIndex(ctx context.Context) (*Index, error) {
	return o.readIndex(ctx)
}

func (o *Orchestrator) readIndex(ctx context.Context) (*Index, error) {
	data, err := o.repo.Get(ctx, constants.CatalogIndexPath)
	if err != nil {
		if errors.IsNotFound(err) {
			return NewIndex(), nil
		}
		return nil, err
	}
	return DecodeIndex(data)
}

func (o *Orchestrator) writeRunMarker(ctx context.Context, runID string, staged Staged, attempts int) error {
	marker := RunMarker{
		RunID:       runID,
		CommittedAt: o.now().Format("2006-01-02T15:04:05Z"),
		EntityCount: staged.EntityCount,
		EventCount:  staged.EventCount,
		Attempts:    attempts,
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return errors.WrapParse("json", "run marker", err)
	}
	_, err = o.repo.PutBatch(ctx, []repository.Put{
		{Path: RunMarkerPath(runID), Data: data},
	}, repository.AnyRevision)
	return err
}

// RunCompleted reports whether a run's marker exists.
func (o *Orchestrator) RunCompleted(ctx context.Context, runID string) (bool, error) {
	_, err := o.repo.Get(ctx, RunMarkerPath(runID))
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RunMarkerPath returns the completion marker path for a run.
func RunMarkerPath(runID string) string {
	return path.Join(constants.MetaPrefix, "runs", runID+".json")
}

// shardSizes maps the master shard paths in the batch to their byte sizes.
func shardSizes(puts []repository.Put) map[string]int64 {
	sizes := map[string]int64{}
	for _, p := range puts {
		if strings.HasPrefix(p.Path, constants.MasterPrefix+"/") {
			sizes[p.Path] = int64(len(p.Data))
		}
	}
	return sizes
}

func newCommitBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = constants.RetryBackoff
	bo.MaxInterval = constants.MaxRetryBackoff
	bo.MaxElapsedTime = 0
	return bo
}

// Package delta manages the staging area where workers deposit their
// proposed contributions. Each chunk lives under its own path and becomes
// visible to the merge only once its completion marker exists; everything
// else is invisible work in progress. A chunk is consumed by exactly one
// merge, and abandoned chunks are reclaimed by an age-based sweep.
package delta

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/pkg/constants"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
	"github.com/toriidata/filermap/pkg/repository"
)

const (
	payloadFile = "payload.json"
	doneMarker  = "_SUCCESS"
)

// Ref identifies one staged chunk.
type Ref struct {
	RunID   string
	ChunkID string
}

// String returns the chunk's repository directory.
func (r Ref) String() string {
	return path.Join(constants.DeltaPrefix, r.RunID, r.ChunkID)
}

// Store stages worker deltas in a repository.
type Store struct {
	repo   repository.Repository
	logger *zerolog.Logger
}

// NewStore creates a delta store over the given repository.
func NewStore(repo repository.Repository, logger *zerolog.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{repo: repo, logger: logger}
}

// Put stages a worker's payload for one chunk. The chunk stays invisible to
// ListReady until MarkDone is called; a partially written chunk is never
// offered to a merge.
func (s *Store) Put(ctx context.Context, ref Ref, payload *entity.DeltaPayload) error {
	if ref.RunID == "" || ref.ChunkID == "" {
		return errors.NewValidationError("ref", ref, "run and chunk identifiers are required")
	}
	if strings.ContainsAny(ref.RunID+ref.ChunkID, "/\\") {
		return errors.NewValidationError("ref", ref, "identifiers must not contain path separators")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapParse("json", ref.String(), err)
	}

	_, err = s.repo.PutBatch(ctx, []repository.Put{
		{Path: path.Join(ref.String(), payloadFile), Data: data},
	}, repository.AnyRevision)
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("run", ref.RunID).
		Str("chunk", ref.ChunkID).
		Int("observations", len(payload.Observations)).
		Int("documents", len(payload.Documents)).
		Msg("Staged delta chunk")
	return nil
}

// MarkDone publishes the chunk: after the marker lands, ListReady includes
// it. The marker is written last so visibility implies completeness.
func (s *Store) MarkDone(ctx context.Context, ref Ref) error {
	if _, err := s.repo.Get(ctx, path.Join(ref.String(), payloadFile)); err != nil {
		if errors.IsNotFound(err) {
			return errors.NewValidationError("ref", ref, "cannot mark an empty chunk done")
		}
		return err
	}
	_, err := s.repo.PutBatch(ctx, []repository.Put{
		{Path: path.Join(ref.String(), doneMarker), Data: []byte{}},
	}, repository.AnyRevision)
	return err
}

// ListReady returns the completed chunks for a run, sorted by chunk id.
// Chunks without a completion marker are skipped.
func (s *Store) ListReady(ctx context.Context, runID string) ([]Ref, error) {
	prefix := path.Join(constants.DeltaPrefix, runID) + "/"
	infos, err := s.repo.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	ready := map[string]bool{}
	for _, info := range infos {
		if path.Base(info.Path) == doneMarker {
			ready[path.Base(path.Dir(info.Path))] = true
		}
	}

	refs := make([]Ref, 0, len(ready))
	for chunk := range ready {
		refs = append(refs, Ref{RunID: runID, ChunkID: chunk})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ChunkID < refs[j].ChunkID })
	return refs, nil
}

// Load reads a chunk's payload without consuming it.
func (s *Store) Load(ctx context.Context, ref Ref) (*entity.DeltaPayload, error) {
	data, err := s.repo.Get(ctx, path.Join(ref.String(), payloadFile))
	if err != nil {
		return nil, err
	}
	var payload entity.DeltaPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.WrapParse("json", ref.String(), err)
	}
	return &payload, nil
}

// Consume removes a chunk after the merge has committed it. Consumption is
// idempotent: removing an already-consumed chunk is not an error.
func (s *Store) Consume(ctx context.Context, refs ...Ref) error {
	var paths []string
	for _, ref := range refs {
		paths = append(paths,
			path.Join(ref.String(), payloadFile),
			path.Join(ref.String(), doneMarker),
		)
	}
	if err := s.repo.Delete(ctx, paths...); err != nil {
		return err
	}
	s.logger.Info().Int("chunks", len(refs)).Msg("Consumed delta chunks")
	return nil
}

// SweepOrphans removes chunks across all runs whose newest object is older
// than maxAge. These are chunks from crashed workers or merges that will
// never complete; their work is re-proposed by a later run.
func (s *Store) SweepOrphans(ctx context.Context, now time.Time, maxAge time.Duration) (int, error) {
	infos, err := s.repo.List(ctx, constants.DeltaPrefix+"/")
	if err != nil {
		return 0, err
	}

	newest := map[string]time.Time{}
	members := map[string][]string{}
	for _, info := range infos {
		dir := path.Dir(info.Path)
		if info.ModTime.After(newest[dir]) {
			newest[dir] = info.ModTime
		}
		members[dir] = append(members[dir], info.Path)
	}

	swept := 0
	for dir, latest := range newest {
		if now.Sub(latest) <= maxAge {
			continue
		}
		if err := s.repo.Delete(ctx, members[dir]...); err != nil {
			return swept, fmt.Errorf("sweeping %s: %w", dir, err)
		}
		s.logger.Warn().Str("chunk", dir).Time("last_write", latest).Msg("Swept orphaned delta chunk")
		swept++
	}
	return swept, nil
}

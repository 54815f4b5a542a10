// Package filermap consolidates regulatory disclosure filings and market
// reference data into a sharded master dataset. Workers stage their raw
// contributions as delta chunks; a single merger per run reconciles them
// against the committed entity state, folds document rows into the master
// partitions, and commits everything behind one atomically advanced
// catalog index. Readers only ever see fully committed generations.
package filermap

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/pkg/audit"
	"github.com/toriidata/filermap/pkg/catalog"
	"github.com/toriidata/filermap/pkg/delta"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
	"github.com/toriidata/filermap/pkg/partition"
	"github.com/toriidata/filermap/pkg/reconcile"
	"github.com/toriidata/filermap/pkg/repository"
)

// DocumentSource lists disclosure documents for one submission date. The
// backfill walks it backwards through history.
type DocumentSource interface {
	FetchDocumentList(ctx context.Context, date time.Time, since time.Time) ([]entity.DocumentRow, error)
}

// Filermap is the engine's public surface: worker-side staging, the
// single-merger run entry point, and the operational triggers.
type Filermap interface {
	// Propose stages one worker's payload as a completed delta chunk for
	// the given run and returns its reference.
	Propose(ctx context.Context, runID string, payload *entity.DeltaPayload) (delta.Ref, error)

	// Merge consumes the run's completed chunks, reconciles them against
	// committed state, and commits the new generation.
	Merge(ctx context.Context, runID string) (*MergeResult, error)

	// Sweep removes abandoned delta chunks and returns how many it swept.
	Sweep(ctx context.Context) (int, error)

	// Audit runs the read-only consistency checks against committed state.
	Audit(ctx context.Context) (*audit.Report, error)

	// Backfill ingests one historical window of disclosure documents and
	// advances the persisted cursor.
	Backfill(ctx context.Context) (*BackfillResult, error)

	// Index returns the committed catalog index.
	Index(ctx context.Context) (*catalog.Index, error)

	// Entities returns the committed consolidated entity table.
	Entities(ctx context.Context) ([]entity.Entity, error)

	// Events returns the committed lifecycle event table.
	Events(ctx context.Context) ([]entity.LifecycleEvent, error)
}

// filermap is the internal implementation of the Filermap interface
type filermap struct {
	config *config
	logger *zerolog.Logger

	repo         repository.Repository
	deltas       *delta.Store
	merger       *partition.Merger
	orchestrator *catalog.Orchestrator
	auditor      *audit.Auditor
	engine       *reconcile.Engine
}

// New creates a new Filermap instance with the given options.
func New(opts ...Option) (Filermap, error) {
	c := defaultOptions()
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}
	if c.repo == nil {
		return nil, errors.NewValidationError("repository", nil, "a repository is required")
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	if c.owner == "" {
		c.owner = hostnameOwner()
	}

	var discoverer *reconcile.Discoverer
	if c.lister != nil {
		discoverer = reconcile.NewDiscoverer(c.lister, c.discoveryWindow, c.logger)
	}

	f := &filermap{
		config:       c,
		logger:       c.logger,
		repo:         c.repo,
		deltas:       delta.NewStore(c.repo, c.logger),
		merger:       partition.NewMerger(c.repo, c.logger),
		orchestrator: catalog.NewOrchestrator(c.repo, c.logger),
		auditor:      audit.NewAuditor(c.repo, c.auditSampleSize, c.logger),
		engine: reconcile.NewEngine(reconcile.Options{
			Authorities: c.authorities,
			Guard:       reconcile.NewGuard(c.exemptSegments),
			Bridge:      reconcile.NewBridge(c.bridgeMappings),
			Discoverer:  discoverer,
			Logger:      c.logger,
		}),
	}
	return f, nil
}

// Propose stages the payload under a fresh chunk id and publishes it.
func (f *filermap) Propose(ctx context.Context, runID string, payload *entity.DeltaPayload) (delta.Ref, error) {
	if payload == nil {
		return delta.Ref{}, errors.NewValidationError("payload", nil, "a payload is required")
	}
	ref := delta.Ref{RunID: runID, ChunkID: uuid.NewString()}
	if err := f.deltas.Put(ctx, ref, payload); err != nil {
		return delta.Ref{}, err
	}
	if err := f.deltas.MarkDone(ctx, ref); err != nil {
		return delta.Ref{}, err
	}
	return ref, nil
}

// Sweep reclaims delta chunks whose newest write is older than the
// configured maximum age.
func (f *filermap) Sweep(ctx context.Context) (int, error) {
	return f.deltas.SweepOrphans(ctx, time.Now().UTC(), f.config.deltaMaxAge)
}

// Audit runs the four-layer consistency checks. It never mutates state.
func (f *filermap) Audit(ctx context.Context) (*audit.Report, error) {
	return f.auditor.Run(ctx)
}

// Index returns the committed catalog index.
func (f *filermap) Index(ctx context.Context) (*catalog.Index, error) {
	return f.orchestrator.ReadIndex(ctx)
}

// Entities returns the committed consolidated entity table.
func (f *filermap) Entities(ctx context.Context) ([]entity.Entity, error) {
	return partition.LoadEntityTable(ctx, f.repo)
}

// Events returns the committed lifecycle event table.
func (f *filermap) Events(ctx context.Context) ([]entity.LifecycleEvent, error) {
	return partition.LoadEventTable(ctx, f.repo)
}

func hostnameOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "filermap"
	}
	return host
}

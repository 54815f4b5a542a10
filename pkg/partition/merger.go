package partition

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
	"github.com/toriidata/filermap/pkg/repository"
)

// Merger folds incoming rows into the sharded master dataset. It reads only
// the shards the incoming rows touch and produces full replacement blobs
// for them; committing the blobs is the catalog's job, so a failed merge
// never leaves a half-written shard behind.
type Merger struct {
	repo   repository.Repository
	logger *zerolog.Logger
}

// NewMerger creates a merger over the given repository.
func NewMerger(repo repository.Repository, logger *zerolog.Logger) *Merger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Merger{repo: repo, logger: logger}
}

// MergeDocuments folds incoming document rows into their shards and returns
// the replacement blobs as staged puts. Duplicate document ids keep the row
// with the latest submission timestamp; ties keep the incoming row. Rows in
// untouched shards are never read or rewritten.
func (m *Merger) MergeDocuments(ctx context.Context, incoming []entity.DocumentRow) ([]repository.Put, error) {
	byShard := map[string][]DocumentRow{}
	for i := range incoming {
		row := NewDocumentRow(&incoming[i])
		if row.DocID == "" {
			return nil, errors.NewValidationError("doc_id", row, "document id is required")
		}
		token := row.ShardToken()
		byShard[token] = append(byShard[token], row)
	}

	var puts []repository.Put
	for _, token := range sortedKeys(byShard) {
		path := ShardPath(TableDocuments, token)

		prior, err := m.loadShard(ctx, path)
		if err != nil {
			return nil, err
		}

		merged := mergeDocumentRows(prior, byShard[token])
		data, err := EncodeRows(merged)
		if err != nil {
			return nil, err
		}
		puts = append(puts, repository.Put{Path: path, Data: data})

		m.logger.Debug().
			Str("shard", token).
			Int("prior", len(prior)).
			Int("incoming", len(byShard[token])).
			Int("merged", len(merged)).
			Msg("Merged document shard")
	}
	return puts, nil
}

func (m *Merger) loadShard(ctx context.Context, path string) ([]DocumentRow, error) {
	data, err := m.repo.Get(ctx, path)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return DecodeRows[DocumentRow](data)
}

// mergeDocumentRows deduplicates on document id keeping the latest
// submission, with incoming rows winning ties, and returns the shard in
// its canonical order.
func mergeDocumentRows(prior, incoming []DocumentRow) []DocumentRow {
	byID := make(map[string]DocumentRow, len(prior)+len(incoming))
	for _, row := range prior {
		byID[row.DocID] = row
	}
	for _, row := range incoming {
		if existing, ok := byID[row.DocID]; ok && existing.SubmittedAtMillis > row.SubmittedAtMillis {
			continue
		}
		byID[row.DocID] = row
	}

	merged := make([]DocumentRow, 0, len(byID))
	for _, row := range byID {
		merged = append(merged, row)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].DocID < merged[j].DocID })
	return merged
}

// StageEntityTable encodes the full consolidated entity table as one staged
// put. Entities are ordered by key so repeated stagings of the same state
// are byte-identical.
func StageEntityTable(entities []entity.Entity) (repository.Put, error) {
	rows := make([]EntityRow, 0, len(entities))
	for i := range entities {
		rows = append(rows, NewEntityRow(&entities[i]))
	}
	sort.Slice(rows, func(i, j int) bool {
		ei, ej := rows[i].Entity(), rows[j].Entity()
		return ei.Key() < ej.Key()
	})

	data, err := EncodeRows(rows)
	if err != nil {
		return repository.Put{}, err
	}
	return repository.Put{Path: EntityTablePath, Data: data}, nil
}

// LoadEntityTable reads the consolidated entity table. A missing table is
// an empty one.
func LoadEntityTable(ctx context.Context, repo repository.Repository) ([]entity.Entity, error) {
	data, err := repo.Get(ctx, EntityTablePath)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	rows, err := DecodeRows[EntityRow](data)
	if err != nil {
		return nil, err
	}
	entities := make([]entity.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, row.Entity())
	}
	return entities, nil
}

// StageEventTable appends new lifecycle events to the stored table and
// encodes the result as one staged put. Events are append-only; re-derived
// duplicates are dropped by dedupe key so re-running a merge cannot double
// an entity's timeline.
func StageEventTable(ctx context.Context, repo repository.Repository, events []entity.LifecycleEvent) (repository.Put, int, error) {
	prior, err := LoadEventTable(ctx, repo)
	if err != nil {
		return repository.Put{}, 0, err
	}

	seen := make(map[string]bool, len(prior))
	rows := make([]EventRow, 0, len(prior)+len(events))
	for i := range prior {
		seen[prior[i].DedupeKey()] = true
		rows = append(rows, NewEventRow(&prior[i]))
	}

	appended := 0
	for i := range events {
		key := events[i].DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, NewEventRow(&events[i]))
		appended++
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].OccurredAtMillis != rows[j].OccurredAtMillis {
			return rows[i].OccurredAtMillis < rows[j].OccurredAtMillis
		}
		if rows[i].EntityKey != rows[j].EntityKey {
			return rows[i].EntityKey < rows[j].EntityKey
		}
		return rows[i].Kind < rows[j].Kind
	})

	data, err := EncodeRows(rows)
	if err != nil {
		return repository.Put{}, 0, err
	}
	return repository.Put{Path: EventTablePath, Data: data}, appended, nil
}

// LoadEventTable reads the lifecycle event table. A missing table is an
// empty one.
func LoadEventTable(ctx context.Context, repo repository.Repository) ([]entity.LifecycleEvent, error) {
	data, err := repo.Get(ctx, EventTablePath)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	rows, err := DecodeRows[EventRow](data)
	if err != nil {
		return nil, err
	}
	events := make([]entity.LifecycleEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.Event())
	}
	return events, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

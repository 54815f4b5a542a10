package partition_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/logging"
	"github.com/toriidata/filermap/pkg/partition"
	"github.com/toriidata/filermap/pkg/repository"
)

func doc(id, corporateNumber, filerCode string, submitted time.Time) entity.DocumentRow {
	return entity.DocumentRow{
		DocID:           id,
		CorporateNumber: corporateNumber,
		FilerCode:       filerCode,
		DocType:         "120",
		SubmittedAt:     utc.New(submitted),
	}
}

func commit(t *testing.T, repo repository.Repository, puts []repository.Put) {
	t.Helper()
	_, err := repo.PutBatch(context.Background(), puts, repository.AnyRevision)
	require.NoError(t, err)
}

func TestRowCodecRoundTrip(t *testing.T) {
	submitted := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	in := doc("S100ABCD", "1234567890123", "E02144", submitted)

	data, err := partition.EncodeRows([]partition.DocumentRow{partition.NewDocumentRow(&in)})
	require.NoError(t, err)

	rows, err := partition.DecodeRows[partition.DocumentRow](data)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	out := rows[0].Document()
	assert.Equal(t, in.DocID, out.DocID)
	assert.Equal(t, in.FilerCode, out.FilerCode)
	assert.True(t, out.SubmittedAt.Equal(utc.New(submitted)))
}

func TestShardPath(t *testing.T) {
	assert.Equal(t, "master/documents/bin=J23/data.parquet", partition.ShardPath(partition.TableDocuments, "J23"))
	assert.Equal(t, "master/documents/bin=No/data.parquet", partition.ShardPath(partition.TableDocuments, "No"))
}

func TestMergeDocumentsGroupsByShard(t *testing.T) {
	repo := repository.NewMemory()
	m := partition.NewMerger(repo, &logging.Nop)
	now := time.Now().UTC()

	puts, err := m.MergeDocuments(context.Background(), []entity.DocumentRow{
		doc("S1", "1234567890123", "E02144", now), // J23
		doc("S2", "1234567890199", "E02144", now), // J99
		doc("S3", "", "E02144", now),              // E44
		doc("S4", "", "", now),                    // No
	})
	require.NoError(t, err)
	require.Len(t, puts, 4)

	var paths []string
	for _, p := range puts {
		paths = append(paths, p.Path)
	}
	assert.Contains(t, paths, "master/documents/bin=J23/data.parquet")
	assert.Contains(t, paths, "master/documents/bin=J99/data.parquet")
	assert.Contains(t, paths, "master/documents/bin=E44/data.parquet")
	assert.Contains(t, paths, "master/documents/bin=No/data.parquet")
}

func TestMergeDocumentsKeepsLatestSubmission(t *testing.T) {
	repo := repository.NewMemory()
	m := partition.NewMerger(repo, &logging.Nop)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	first := doc("S1", "1234567890123", "E02144", base)
	first.Title = "original"
	puts, err := m.MergeDocuments(ctx, []entity.DocumentRow{first})
	require.NoError(t, err)
	commit(t, repo, puts)

	// A later correction for the same document replaces it.
	second := doc("S1", "1234567890123", "E02144", base.Add(time.Hour))
	second.Title = "corrected"
	puts, err = m.MergeDocuments(ctx, []entity.DocumentRow{second})
	require.NoError(t, err)
	commit(t, repo, puts)

	// A stale re-proposal of the original must not win.
	puts, err = m.MergeDocuments(ctx, []entity.DocumentRow{first})
	require.NoError(t, err)
	commit(t, repo, puts)

	data, err := repo.Get(ctx, "master/documents/bin=J23/data.parquet")
	require.NoError(t, err)
	rows, err := partition.DecodeRows[partition.DocumentRow](data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "corrected", rows[0].Title)
}

func TestMergeDocumentsIdempotent(t *testing.T) {
	repo := repository.NewMemory()
	m := partition.NewMerger(repo, &logging.Nop)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	incoming := []entity.DocumentRow{
		doc("S2", "1234567890123", "E02144", now),
		doc("S1", "1234567890123", "E02144", now),
	}

	puts, err := m.MergeDocuments(ctx, incoming)
	require.NoError(t, err)
	require.Len(t, puts, 1)
	commit(t, repo, puts)

	again, err := m.MergeDocuments(ctx, incoming)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, puts[0].Data, again[0].Data, "re-merging identical rows must be byte-stable")
}

func TestMergeDocumentsDoesNotTouchOtherShards(t *testing.T) {
	repo := repository.NewMemory()
	m := partition.NewMerger(repo, &logging.Nop)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	puts, err := m.MergeDocuments(ctx, []entity.DocumentRow{doc("S1", "1234567890123", "E02144", now)})
	require.NoError(t, err)
	commit(t, repo, puts)

	puts, err = m.MergeDocuments(ctx, []entity.DocumentRow{doc("S2", "1234567890199", "E02144", now)})
	require.NoError(t, err)
	require.Len(t, puts, 1)
	assert.Equal(t, "master/documents/bin=J99/data.parquet", puts[0].Path)
}

func TestMergeDocumentsRejectsMissingID(t *testing.T) {
	m := partition.NewMerger(repository.NewMemory(), &logging.Nop)
	_, err := m.MergeDocuments(context.Background(), []entity.DocumentRow{{FilerCode: "E02144"}})
	assert.Error(t, err)
}

func TestEntityTableRoundTrip(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	entities := []entity.Entity{
		{
			CorporateNumber: "1234567890123",
			FilerCode:       "E02144",
			SecurityCode:    "72030",
			DisplayName:     "トヨタ自動車株式会社",
			IsActive:        entity.True,
			EverActive:      true,
			LastConfirmedAt: utc.New(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
			ShardKey:        "J23",
		},
		{
			FilerCode: "E99999",
			IsActive:  entity.Unknown,
			ShardKey:  "E99",
		},
	}

	put, err := partition.StageEntityTable(entities)
	require.NoError(t, err)
	assert.Equal(t, partition.EntityTablePath, put.Path)
	commit(t, repo, []repository.Put{put})

	got, err := partition.LoadEntityTable(ctx, repo)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byKey := map[string]entity.Entity{}
	for _, e := range got {
		byKey[e.Key()] = e
	}
	toyota := byKey["1234567890123"]
	assert.Equal(t, "トヨタ自動車株式会社", toyota.DisplayName)
	assert.True(t, toyota.IsActive.IsTrue())
	assert.Equal(t, "J23", toyota.ShardKey)

	other := byKey["E99999"]
	assert.True(t, other.IsActive.IsUnknown(), "unknown activity must survive storage")
	assert.True(t, other.LastConfirmedAt.IsZero())
}

func TestEntityTableByteStable(t *testing.T) {
	entities := []entity.Entity{
		{FilerCode: "E00002", ShardKey: "E02"},
		{FilerCode: "E00001", ShardKey: "E01"},
	}
	a, err := partition.StageEntityTable(entities)
	require.NoError(t, err)

	reversed := []entity.Entity{entities[1], entities[0]}
	b, err := partition.StageEntityTable(reversed)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data, "input order must not affect the stored table")
}

func TestEventTableAppendsAndDedupes(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	listing := entity.LifecycleEvent{
		EntityKey:  "E02144",
		Kind:       entity.EventListing,
		OccurredAt: utc.New(day),
	}

	put, appended, err := partition.StageEventTable(ctx, repo, []entity.LifecycleEvent{listing})
	require.NoError(t, err)
	assert.Equal(t, 1, appended)
	commit(t, repo, []repository.Put{put})

	// Re-deriving the same event appends nothing; a distinct event appends.
	delisting := entity.LifecycleEvent{
		EntityKey:  "E02144",
		Kind:       entity.EventDelisting,
		OccurredAt: utc.New(day.AddDate(0, 0, 1)),
	}
	put, appended, err = partition.StageEventTable(ctx, repo, []entity.LifecycleEvent{listing, delisting})
	require.NoError(t, err)
	assert.Equal(t, 1, appended)
	commit(t, repo, []repository.Put{put})

	events, err := partition.LoadEventTable(ctx, repo)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, entity.EventListing, events[0].Kind)
	assert.Equal(t, entity.EventDelisting, events[1].Kind)
}

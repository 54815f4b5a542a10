package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/repository"
)

// Both implementations must satisfy the same contract, so the suite runs
// against each.
func eachRepository(t *testing.T, fn func(t *testing.T, repo repository.Repository)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, repository.NewMemory())
	})
	t.Run("fs", func(t *testing.T) {
		repo, err := repository.NewFS(t.TempDir())
		require.NoError(t, err)
		fn(t, repo)
	})
}

func TestGetMissing(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo repository.Repository) {
		_, err := repo.Get(context.Background(), "master/entities/bin=J23/data.parquet")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestPutBatchRoundTrip(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		rev, err := repo.PutBatch(ctx, []repository.Put{
			{Path: "meta/entities.json", Data: []byte(`{"a":1}`)},
			{Path: "catalog/index.json", Data: []byte(`{}`)},
		}, repository.AnyRevision)
		require.NoError(t, err)
		assert.NotEqual(t, repository.AnyRevision, rev)

		data, err := repo.Get(ctx, "meta/entities.json")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"a":1}`), data)

		got, err := repo.Revision(ctx)
		require.NoError(t, err)
		assert.Equal(t, rev, got)
	})
}

func TestPutBatchStaleRevisionConflicts(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		rev1, err := repo.PutBatch(ctx, []repository.Put{
			{Path: "catalog/index.json", Data: []byte(`{"rev":1}`)},
		}, repository.AnyRevision)
		require.NoError(t, err)

		// A second writer advances the repository.
		_, err = repo.PutBatch(ctx, []repository.Put{
			{Path: "catalog/index.json", Data: []byte(`{"rev":2}`)},
		}, rev1)
		require.NoError(t, err)

		// The first writer's stale revision must be rejected, and the
		// conflict must read as transient so the merge loop retries it.
		_, err = repo.PutBatch(ctx, []repository.Put{
			{Path: "catalog/index.json", Data: []byte(`{"rev":"stale"}`)},
		}, rev1)
		require.Error(t, err)
		assert.True(t, errors.IsConflict(err))
		assert.True(t, errors.IsTransient(err))

		data, err := repo.Get(ctx, "catalog/index.json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"rev":2}`, string(data))
	})
}

func TestConflictLeavesObjectsUntouched(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		rev, err := repo.PutBatch(ctx, []repository.Put{
			{Path: "meta/entities.json", Data: []byte("v1")},
		}, repository.AnyRevision)
		require.NoError(t, err)

		_, err = repo.PutBatch(ctx, nil, repository.AnyRevision)
		require.NoError(t, err)

		_, err = repo.PutBatch(ctx, []repository.Put{
			{Path: "meta/entities.json", Data: []byte("v2")},
			{Path: "meta/events.json", Data: []byte("v2")},
		}, rev)
		require.Error(t, err)

		data, err := repo.Get(ctx, "meta/entities.json")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), data)

		_, err = repo.Get(ctx, "meta/events.json")
		assert.True(t, errors.IsNotFound(err), "no object from the rejected batch may land")
	})
}

func TestListPrefix(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		_, err := repo.PutBatch(ctx, []repository.Put{
			{Path: "temp/deltas/run-1/chunk-0/payload.json", Data: []byte("a")},
			{Path: "temp/deltas/run-1/chunk-1/payload.json", Data: []byte("bb")},
			{Path: "temp/deltas/run-2/chunk-0/payload.json", Data: []byte("c")},
			{Path: "master/entities/bin=J23/data.parquet", Data: []byte("d")},
		}, repository.AnyRevision)
		require.NoError(t, err)

		infos, err := repo.List(ctx, "temp/deltas/run-1/")
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "temp/deltas/run-1/chunk-0/payload.json", infos[0].Path)
		assert.Equal(t, "temp/deltas/run-1/chunk-1/payload.json", infos[1].Path)
		assert.Equal(t, int64(2), infos[1].Size)
		assert.WithinDuration(t, time.Now().UTC(), infos[0].ModTime, time.Minute)

		infos, err = repo.List(ctx, "nothing/here/")
		require.NoError(t, err)
		assert.Empty(t, infos)
	})
}

func TestDeleteIsIdempotent(t *testing.T) {
	eachRepository(t, func(t *testing.T, repo repository.Repository) {
		ctx := context.Background()

		_, err := repo.PutBatch(ctx, []repository.Put{
			{Path: "temp/deltas/run-1/chunk-0/payload.json", Data: []byte("a")},
		}, repository.AnyRevision)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, "temp/deltas/run-1/chunk-0/payload.json", "never/existed"))
		require.NoError(t, repo.Delete(ctx, "temp/deltas/run-1/chunk-0/payload.json"))

		_, err = repo.Get(ctx, "temp/deltas/run-1/chunk-0/payload.json")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestMemoryTouchBackdates(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	_, err := repo.PutBatch(ctx, []repository.Put{
		{Path: "temp/deltas/run-1/chunk-0/payload.json", Data: []byte("a")},
	}, repository.AnyRevision)
	require.NoError(t, err)

	old := time.Now().UTC().Add(-48 * time.Hour)
	repo.Touch("temp/deltas/run-1/chunk-0/payload.json", old)

	infos, err := repo.List(ctx, "temp/deltas/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, old, infos[0].ModTime)
}

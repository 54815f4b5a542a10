package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/toriidata/filermap/pkg/errors"
)

func TestNotFoundError(t *testing.T) {
	err := pkgerrors.NewNotFoundError("blob", "master/entities/bin=J23/data.parquet")
	assert.Equal(t, "blob master/entities/bin=J23/data.parquet not found", err.Error())
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.False(t, pkgerrors.IsTransient(err))
}

func TestConflictError(t *testing.T) {
	err := pkgerrors.NewConflictError("catalog/index.json", "rev-41", "rev-42")
	assert.True(t, pkgerrors.IsConflict(err))

	// Conflicts are retryable: the merger re-reads and retries the whole run.
	assert.True(t, pkgerrors.IsTransient(err))

	wrapped := errors.Join(errors.New("commit failed"), err)
	assert.True(t, pkgerrors.IsConflict(wrapped))
}

func TestTransientError(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		err := pkgerrors.NewTransientError("fetch document list", 429, "too many requests")
		assert.True(t, pkgerrors.IsTransient(err))
		assert.True(t, pkgerrors.IsRateLimited(err))
	})

	t.Run("server error", func(t *testing.T) {
		err := pkgerrors.NewTransientError("put batch", 503, "unavailable")
		assert.True(t, pkgerrors.IsTransient(err))
		assert.False(t, pkgerrors.IsRateLimited(err))
	})
}

func TestIntegrityError(t *testing.T) {
	err := pkgerrors.NewIntegrityError("obs:13370", "no derivable corporate number")
	assert.True(t, pkgerrors.IsIntegrity(err))
	assert.False(t, pkgerrors.IsFatal(err))
	assert.Contains(t, err.Error(), "obs:13370")
}

func TestFatalError(t *testing.T) {
	err := pkgerrors.NewFatalError("disclosure", "API key rejected", nil)
	assert.True(t, pkgerrors.IsFatal(err))
	assert.False(t, pkgerrors.IsTransient(err))
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		fatal     bool
	}{
		{"rate limit", 429, true, false},
		{"server error", 502, true, false},
		{"auth failure", 401, false, true},
		{"forbidden", 403, false, true},
		{"client error", 400, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewAPIError("venue", tt.status, "boom")
			assert.Equal(t, tt.transient, pkgerrors.IsTransient(err))
			assert.Equal(t, tt.fatal, pkgerrors.IsFatal(err))
		})
	}
}

func TestWrapHelpers(t *testing.T) {
	assert.NoError(t, pkgerrors.WrapIO("write", "x", nil))

	err := pkgerrors.WrapIO("write", "temp/deltas/run-1/chunk-0", errors.New("disk full"))
	assert.Contains(t, err.Error(), "temp/deltas/run-1/chunk-0")

	perr := pkgerrors.WrapParse("parquet", "entity table", errors.New("bad magic"))
	assert.Contains(t, perr.Error(), "parquet")
}

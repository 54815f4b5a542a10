package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/internal/transport"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
)

func newClient(t *testing.T, handler http.HandlerFunc, cfg transport.Config) *transport.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg.BaseURL = server.URL
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1000 // keep tests fast
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = time.Millisecond
	}
	return transport.New(cfg, &logging.Nop)
}

func TestGetAppliesQueryAuth(t *testing.T) {
	var gotKey, gotDate string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("Subscription-Key")
		gotDate = r.URL.Query().Get("date")
		w.Write([]byte(`{"results":[]}`))
	}, transport.Config{
		Source: "disclosure",
		APIKey: "secret",
		Auth:   &transport.QueryAuth{Param: "Subscription-Key"},
	})

	body, err := c.Get(context.Background(), "/documents.json", map[string]string{"date": "2026-03-14"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(body))
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "2026-03-14", gotDate)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}, transport.Config{Source: "venue"})

	_, err := c.Get(context.Background(), "/listing.json", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, transport.Config{Source: "disclosure"})

	_, err := c.Get(context.Background(), "/documents.json", nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err), "bad credentials abort instead of retrying")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimitIsTransient(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}, transport.Config{Source: "disclosure"})

	_, err := c.Get(context.Background(), "/documents.json", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDownloadStream(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("zip-bytes"))
	}, transport.Config{Source: "disclosure"})

	rc, err := c.DownloadStream(context.Background(), "/documents/S100ABCD", map[string]string{"type": "1"})
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))
}

func TestDownloadStreamSurfacesNotFound(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, transport.Config{Source: "disclosure"})

	_, err := c.DownloadStream(context.Background(), "/documents/S100GONE", nil)
	assert.Error(t, err)
}

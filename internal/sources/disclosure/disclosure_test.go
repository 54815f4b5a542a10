package disclosure_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/internal/sources/disclosure"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/logging"
)

const listBody = `{
	"metadata": {"status": "200"},
	"results": [
		{
			"docID": "S100ABCD",
			"edinetCode": "E02144",
			"secCode": "7203",
			"JCN": "1234567890123",
			"filerName": "トヨタ自動車株式会社",
			"docTypeCode": "120",
			"docDescription": "有価証券報告書",
			"submitDateTime": "2026-03-14 09:30",
			"withdrawalStatus": "0",
			"futureField": "ignored"
		},
		{
			"docID": "S100AMND",
			"edinetCode": "E02144",
			"secCode": "7203",
			"submitDateTime": "2026-03-14 15:45",
			"parentDocID": "S100ABCD"
		},
		{
			"docID": "",
			"submitDateTime": "2026-03-14 10:00"
		}
	]
}`

func newClient(t *testing.T, handler http.HandlerFunc) *disclosure.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := disclosure.New(disclosure.Config{BaseURL: server.URL, APIKey: "key"}, &logging.Nop)
	require.NoError(t, err)
	return c
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := disclosure.New(disclosure.Config{BaseURL: "http://example.invalid"}, &logging.Nop)
	assert.ErrorIs(t, err, errors.ErrAPIKeyRequired)
}

func TestFetchDocumentList(t *testing.T) {
	var gotQuery map[string]string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"date": r.URL.Query().Get("date"),
			"type": r.URL.Query().Get("type"),
			"key":  r.URL.Query().Get("Subscription-Key"),
		}
		io.WriteString(w, listBody)
	})

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	rows, err := c.FetchDocumentList(context.Background(), date, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, "2026-03-14", gotQuery["date"])
	assert.Equal(t, "2", gotQuery["type"])
	assert.Equal(t, "key", gotQuery["key"])

	require.Len(t, rows, 2, "rows without a document id are dropped")
	first := rows[0]
	assert.Equal(t, "S100ABCD", first.DocID)
	assert.Equal(t, "E02144", first.FilerCode)
	assert.Equal(t, "72030", string(first.SecurityCode), "codes normalize to canonical width")
	assert.Equal(t, "1234567890123", first.CorporateNumber)
	assert.False(t, first.IsAmendment)

	// 09:30 JST is 00:30 UTC.
	assert.Equal(t, time.Date(2026, 3, 14, 0, 30, 0, 0, time.UTC), first.SubmittedAt.Time)

	second := rows[1]
	assert.True(t, second.IsAmendment)
	assert.Equal(t, "S100ABCD", second.ParentDocID)
}

func TestFetchDocumentListSinceFilter(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listBody)
	})

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	since := time.Date(2026, 3, 14, 0, 30, 0, 0, time.UTC) // equals the first row's stamp

	rows, err := c.FetchDocumentList(context.Background(), date, since)
	require.NoError(t, err)
	require.Len(t, rows, 1, "documents at or before the watermark are dropped")
	assert.Equal(t, "S100AMND", rows[0].DocID)
}

func TestFetchDocument(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/S100ABCD", r.URL.Path)
		assert.Equal(t, disclosure.KindCSV, r.URL.Query().Get("type"))
		io.WriteString(w, "zip-bytes")
	})

	rc, err := c.FetchDocument(context.Background(), "S100ABCD", disclosure.KindCSV)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))
}

func TestFetchDocumentRequiresID(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.FetchDocument(context.Background(), "", disclosure.KindMain)
	assert.Error(t, err)
}

package venue_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/internal/sources/venue"
	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/logging"
)

func TestFetchCurrentListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/listed/info", r.URL.Path)
		io.WriteString(w, `{
			"date": "2026-03-13",
			"info": [
				{
					"Code": "7203",
					"CompanyName": "トヨタ自動車",
					"CompanyNameEnglish": "TOYOTA MOTOR CORPORATION",
					"Sector33CodeName": "輸送用機器",
					"MarketCodeName": "プライム"
				},
				{
					"Code": "",
					"CompanyName": "壊れた行"
				}
			]
		}`)
	}))
	defer server.Close()

	c := venue.New(venue.Config{BaseURL: server.URL}, &logging.Nop)
	obs, err := c.FetchCurrentListing(context.Background())
	require.NoError(t, err)

	require.Len(t, obs, 1, "rows without a code are dropped")
	got := obs[0]
	assert.Equal(t, entity.SourceVenue, got.Source)
	assert.Equal(t, "72030", string(got.SecurityCode))
	assert.Equal(t, "トヨタ自動車", got.DisplayName)
	assert.Equal(t, "プライム", got.MarketSegment)
	assert.True(t, got.Active.IsTrue())
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), got.ObservedAt.Time, "snapshot date stamps the batch")
}

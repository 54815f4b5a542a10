package bridge_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/internal/sources/bridge"
	"github.com/toriidata/filermap/pkg/logging"
)

func TestFetchRetiredMappings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"mappings": [
				{"retired_code": "E01111", "surviving_code": "E02144"},
				{"retired_code": "E02222", "surviving_code": "E02222"},
				{"retired_code": "", "surviving_code": "E03333"}
			]
		}`)
	}))
	defer server.Close()

	c := bridge.New(bridge.Config{BaseURL: server.URL}, &logging.Nop)
	mappings, err := c.FetchRetiredMappings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"E01111": "E02144"}, mappings, "self-referential and empty rows are dropped")
}

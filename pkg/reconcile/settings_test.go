package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/reconcile"
)

func TestParseSettings(t *testing.T) {
	data := []byte(`
exempt_segments:
  - ETF
  - インフラファンド
authorities:
  - field: sector
    source: registry
    priority: 120
`)
	s, err := reconcile.ParseSettings(data)
	require.NoError(t, err)

	guard := s.Guard()
	assert.True(t, guard.Exempt("インフラファンド"))
	assert.False(t, guard.Exempt("プライム"))

	provider := s.AuthorityProvider()
	require.NotNil(t, provider)
	auth := provider.GetAuthority(reconcile.FieldSector, []entity.SourceKind{entity.SourceRegistry, entity.SourceVenue})
	require.NotNil(t, auth)
	assert.Equal(t, entity.SourceRegistry, auth.Source)
}

func TestParseSettingsEmpty(t *testing.T) {
	s, err := reconcile.ParseSettings([]byte("{}"))
	require.NoError(t, err)
	assert.Nil(t, s.AuthorityProvider(), "no overrides keeps the default table")
}

func TestParseSettingsInvalid(t *testing.T) {
	_, err := reconcile.ParseSettings([]byte("exempt_segments: {not: a list"))
	assert.Error(t, err)
}

package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/agentstation/utc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toriidata/filermap/pkg/entity"
	"github.com/toriidata/filermap/pkg/errors"
	"github.com/toriidata/filermap/pkg/identity"
	"github.com/toriidata/filermap/pkg/logging"
	"github.com/toriidata/filermap/pkg/reconcile"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips kabushiki kaisha", "トヨタ自動車株式会社", "トヨタ自動車"},
		{"strips leading legal form", "株式会社日立製作所", "日立製作所"},
		{"folds full width latin", "ＳＯＮＹ", "SONY"},
		{"strips english forms", "Sony Group Corporation", "SONYGROUP"},
		{"collapses whitespace", " Keyence   Corporation ", "KEYENCE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reconcile.NormalizeName(tt.in))
		})
	}
}

func TestSameName(t *testing.T) {
	assert.True(t, reconcile.SameName("トヨタ自動車株式会社", "株式会社トヨタ自動車"))
	assert.True(t, reconcile.SameName("ＳＯＮＹ", "Sony"))
	assert.False(t, reconcile.SameName("トヨタ自動車", "日産自動車"))
	assert.False(t, reconcile.SameName("", "トヨタ自動車"))
}

func TestBridgeResolve(t *testing.T) {
	b := reconcile.NewBridge(map[string]string{
		"E00001": "E00002",
		"E00002": "E00003",
	})

	code, bridged := b.Resolve("E00001")
	assert.Equal(t, "E00003", code, "chains follow to the terminal survivor")
	assert.True(t, bridged)

	code, bridged = b.Resolve("E09999")
	assert.Equal(t, "E09999", code)
	assert.False(t, bridged)

	assert.True(t, b.Retired("E00001"))
	assert.False(t, b.Retired("E00003"))
}

func TestBridgeResolveCycleTerminates(t *testing.T) {
	b := reconcile.NewBridge(map[string]string{
		"E00001": "E00002",
		"E00002": "E00001",
	})
	code, bridged := b.Resolve("E00001")
	assert.True(t, bridged)
	assert.Contains(t, []string{"E00001", "E00002"}, code)
}

func TestGuardAdmit(t *testing.T) {
	g := reconcile.NewGuard(nil)

	tests := []struct {
		name string
		obs  entity.Observation
		want bool
	}{
		{"filer code passes", entity.Observation{FilerCode: "E02144"}, true},
		{"corporate number passes", entity.Observation{CorporateNumber: "1234567890123"}, true},
		{"bare venue row blocked", entity.Observation{SecurityCode: "99990", MarketSegment: "グロース"}, false},
		{"etf exempt", entity.Observation{SecurityCode: "13060", MarketSegment: "ETF・ETN"}, true},
		{"reit exempt", entity.Observation{SecurityCode: "89510", MarketSegment: "REIT"}, true},
		{"pro market exempt", entity.Observation{SecurityCode: "29750", MarketSegment: "TOKYO PRO Market"}, true},
		{"no segment blocked", entity.Observation{SecurityCode: "99990"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Admit(&tt.obs))
		})
	}
}

func TestGuardCustomList(t *testing.T) {
	g := reconcile.NewGuard([]string{"INFRA FUND"})
	assert.True(t, g.Exempt("インフラファンド/Infra Fund"))
	assert.False(t, g.Exempt("ETF"), "custom list replaces the defaults")
}

// fakeLister serves canned document lists keyed by day.
type fakeLister struct {
	docs  map[string][]entity.DocumentRow
	calls int
	err   error
}

func (f *fakeLister) ListByDate(_ context.Context, date time.Time) ([]entity.DocumentRow, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[date.Format("2006-01-02")], nil
}

func TestDiscoverFindsRecentFiling(t *testing.T) {
	asOf := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{docs: map[string][]entity.DocumentRow{
		"2026-03-12": {{
			DocID:           "S100NEWF",
			SecurityCode:    "7777", // four characters in source material
			FilerCode:       "E39999",
			CorporateNumber: "9876543210987",
			FilerName:       "新規上場株式会社",
		}},
	}}

	d := reconcile.NewDiscoverer(lister, 30, &logging.Nop)
	match, err := d.Discover(context.Background(), identity.Normalize("7777"), asOf)
	require.NoError(t, err)
	assert.Equal(t, "E39999", match.FilerCode)
	assert.Equal(t, "9876543210987", match.CorporateNumber)
	assert.Equal(t, "S100NEWF", match.EvidenceDocID)
	assert.Equal(t, 3, lister.calls, "scan stops at the first matching day")
}

func TestDiscoverExhaustsWindow(t *testing.T) {
	lister := &fakeLister{docs: map[string][]entity.DocumentRow{}}
	d := reconcile.NewDiscoverer(lister, 5, &logging.Nop)

	_, err := d.Discover(context.Background(), "77770", time.Now().UTC())
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, 5, lister.calls)
}

func TestDiscoverPropagatesListingFailure(t *testing.T) {
	lister := &fakeLister{err: errors.NewTransientError("list", 503, "unavailable")}
	d := reconcile.NewDiscoverer(lister, 30, &logging.Nop)

	_, err := d.Discover(context.Background(), "77770", time.Now().UTC())
	assert.True(t, errors.IsTransient(err), "a flaky day must not silently shrink the window")
	assert.Equal(t, 1, lister.calls)
}

func TestAuthorityByField(t *testing.T) {
	auth := reconcile.NewDefaultAuthorities()

	got := auth.GetAuthority(reconcile.FieldDisplayName, []entity.SourceKind{entity.SourceVenue, entity.SourceRegistry})
	require.NotNil(t, got)
	assert.Equal(t, entity.SourceRegistry, got.Source)

	got = auth.GetAuthority(reconcile.FieldSector, []entity.SourceKind{entity.SourceVenue, entity.SourceRegistry})
	require.NotNil(t, got)
	assert.Equal(t, entity.SourceVenue, got.Source)

	got = auth.GetAuthority(reconcile.FieldMarketSegment, []entity.SourceKind{entity.SourceRegistry})
	assert.Nil(t, got, "no authority entry means no claim")
}

func obsAt(t time.Time) utc.Time {
	return utc.New(t)
}

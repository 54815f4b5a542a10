package reconcile

import "github.com/toriidata/filermap/pkg/entity"

// AuthorityProvider determines which source is authoritative for each field.
type AuthorityProvider interface {
	// GetAuthority returns the winning authority entry for a field among
	// the sources present, or nil if no source carries authority for it.
	GetAuthority(field string, present []entity.SourceKind) *FieldAuthority

	// GetAuthorities returns the full priority table.
	GetAuthorities() []FieldAuthority
}

// FieldAuthority defines source priority for a specific field.
type FieldAuthority struct {
	Field    string            `json:"field" yaml:"field"`
	Source   entity.SourceKind `json:"source" yaml:"source"`
	Priority int               `json:"priority" yaml:"priority"` // higher = more authoritative
}

// Reconciled field names used in the authority table.
const (
	FieldDisplayName     = "display_name"
	FieldDisplayNameEn   = "display_name_en"
	FieldSector          = "sector"
	FieldMarketSegment   = "market_segment"
	FieldActive          = "active"
	FieldCorporateNumber = "corporate_number"
)

// DefaultAuthorities is the standard priority table.
type DefaultAuthorities struct {
	authorities []FieldAuthority
}

// NewDefaultAuthorities builds the standard table: the regulator's registry
// is truth for names and registered status, the venue is truth for market
// classification, and the real-time lookup outranks both for entities the
// registry has not caught up with yet. Previously committed values are the
// implicit floor below every entry.
func NewDefaultAuthorities() AuthorityProvider {
	return &DefaultAuthorities{authorities: []FieldAuthority{
		// Identity attributes: realtime lookup wins while the registry lags
		// behind a fresh listing, then the registry takes over.
		{Field: FieldDisplayName, Source: entity.SourceRealtime, Priority: 110},
		{Field: FieldDisplayName, Source: entity.SourceRegistry, Priority: 100},
		{Field: FieldDisplayName, Source: entity.SourceVenue, Priority: 80},

		{Field: FieldDisplayNameEn, Source: entity.SourceRealtime, Priority: 110},
		{Field: FieldDisplayNameEn, Source: entity.SourceRegistry, Priority: 100},
		{Field: FieldDisplayNameEn, Source: entity.SourceVenue, Priority: 80},

		{Field: FieldCorporateNumber, Source: entity.SourceRealtime, Priority: 110},
		{Field: FieldCorporateNumber, Source: entity.SourceRegistry, Priority: 100},

		// Registered/active status is the regulator's call.
		{Field: FieldActive, Source: entity.SourceRealtime, Priority: 110},
		{Field: FieldActive, Source: entity.SourceRegistry, Priority: 100},
		{Field: FieldActive, Source: entity.SourceVenue, Priority: 70},

		// Market classification is the venue's call.
		{Field: FieldSector, Source: entity.SourceVenue, Priority: 100},
		{Field: FieldSector, Source: entity.SourceRegistry, Priority: 70},
		{Field: FieldMarketSegment, Source: entity.SourceVenue, Priority: 100},
	}}
}

// GetAuthority returns the winning authority entry for a field among the
// sources present.
func (da *DefaultAuthorities) GetAuthority(field string, present []entity.SourceKind) *FieldAuthority {
	return AuthorityByField(field, present, da.authorities)
}

// GetAuthorities returns the full priority table.
func (da *DefaultAuthorities) GetAuthorities() []FieldAuthority {
	return da.authorities
}

// AuthorityByField returns the highest priority entry for a field whose
// source is among those present.
func AuthorityByField(field string, present []entity.SourceKind, authorities []FieldAuthority) *FieldAuthority {
	var best *FieldAuthority
	for i, auth := range authorities {
		if auth.Field != field || !containsSource(present, auth.Source) {
			continue
		}
		if best == nil || auth.Priority > best.Priority {
			best = &authorities[i]
		}
	}
	return best
}

func containsSource(kinds []entity.SourceKind, kind entity.SourceKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CustomAuthorities allows overriding the priority table from configuration.
type CustomAuthorities struct {
	authorities []FieldAuthority
}

// NewCustomAuthorities creates an empty override table.
func NewCustomAuthorities() *CustomAuthorities {
	return &CustomAuthorities{}
}

// AddAuthority appends one entry.
func (ca *CustomAuthorities) AddAuthority(authority FieldAuthority) {
	ca.authorities = append(ca.authorities, authority)
}

// GetAuthority returns the winning entry among the sources present.
func (ca *CustomAuthorities) GetAuthority(field string, present []entity.SourceKind) *FieldAuthority {
	return AuthorityByField(field, present, ca.authorities)
}

// GetAuthorities returns the full priority table.
func (ca *CustomAuthorities) GetAuthorities() []FieldAuthority {
	return ca.authorities
}

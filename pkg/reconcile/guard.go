package reconcile

import (
	"strings"

	"golang.org/x/text/width"

	"github.com/toriidata/filermap/pkg/entity"
)

// DefaultExemptSegments lists market-segment substrings whose instruments
// legitimately carry no regulator registration: funds and professional
// markets file through a sponsor, not under their own filer code.
var DefaultExemptSegments = []string{
	"ETF",
	"ETN",
	"REIT",
	"FUND",
	"PRO MARKET",
}

// Guard decides whether an observation without regulator identifiers may
// enter the consolidated entity table. Without the guard, venue-only rows
// would register phantom filers that no disclosure can ever attach to.
type Guard struct {
	exempt []string
}

// NewGuard creates a guard with the given exempt market-segment substrings.
// Nil means the default list.
func NewGuard(exemptSegments []string) *Guard {
	if exemptSegments == nil {
		exemptSegments = DefaultExemptSegments
	}
	upper := make([]string, len(exemptSegments))
	for i, s := range exemptSegments {
		upper[i] = strings.ToUpper(s)
	}
	return &Guard{exempt: upper}
}

// Admit reports whether the observation may create or update a registered
// entity. Observations carrying a filer code or corporate number always
// pass; identifier-less observations pass only when their market segment
// matches an exemption.
func (g *Guard) Admit(obs *entity.Observation) bool {
	if obs.FilerCode != "" || obs.CorporateNumber != "" {
		return true
	}
	return g.Exempt(obs.MarketSegment)
}

// Exempt reports whether a market segment is exempt from registration.
func (g *Guard) Exempt(marketSegment string) bool {
	if marketSegment == "" {
		return false
	}
	segment := strings.ToUpper(width.Fold.String(marketSegment))
	for _, e := range g.exempt {
		if strings.Contains(segment, e) {
			return true
		}
	}
	return false
}

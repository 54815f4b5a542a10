package reconcile

import (
	"strings"

	"golang.org/x/text/width"
)

// legalForms are corporate designators stripped before comparing display
// names, so a re-registration from "○○株式会社" to "株式会社○○" or a
// romanization tweak does not masquerade as a rename.
var legalForms = []string{
	"株式会社",
	"有限会社",
	"合同会社",
	"合資会社",
	"合名会社",
	"(株)",
	"(有)",
	"投資法人",
	"CO.,LTD.",
	"CO., LTD.",
	"CO.,LTD",
	"CORPORATION",
	"INCORPORATED",
	"COMPANY",
	"LIMITED",
	"INC.",
	"LTD.",
	"INC",
	"LTD",
	"K.K.",
}

// NormalizeName canonicalizes a display name for comparison: full-width
// characters fold to half-width, legal-form designators and whitespace are
// stripped, and the rest upper-cases.
func NormalizeName(name string) string {
	s := width.Fold.String(name)
	s = strings.ToUpper(s)
	for _, form := range legalForms {
		s = strings.ReplaceAll(s, form, "")
	}
	s = strings.Join(strings.Fields(s), "")
	s = strings.Trim(s, ".,・ ")
	return s
}

// SameName reports whether two display names refer to the same entity name
// after normalization. Empty names never match anything.
func SameName(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

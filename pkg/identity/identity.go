// Package identity provides pure normalization of the raw identifiers that
// arrive from external sources: market-assigned security codes,
// regulator-assigned filer codes, and the immutable government corporate
// number. It also derives the immutable shard token used to place records
// in master partitions.
package identity

import (
	"strings"

	"golang.org/x/text/width"
)

// Code is a normalized 5-character security code. The zero value is Absent,
// which is distinct from any valid code: an empty raw input normalizes to
// Absent, never to a padded or partial code.
type Code string

// Absent is the explicit "no code" value for unlisted entities.
const Absent Code = ""

// canonicalSuffix is the 5th character carried by a common share class.
// Any other 5th character marks a subordinate share class (preferred
// shares and similar) whose parent is the common class.
const canonicalSuffix = '0'

// String returns the code as a plain string.
func (c Code) String() string { return string(c) }

// IsAbsent reports whether the code is the explicit absent value.
func (c Code) IsAbsent() bool { return c == Absent }

// Normalize maps a raw security code to its canonical 5-character form.
//
// A 4-character numeric code gains a trailing zero; 5-character codes,
// including alphanumeric share-class suffixes, pass through unchanged.
// Full-width digits are folded to ASCII and spreadsheet-style ".0"
// suffixes are stripped before padding. Empty input yields Absent.
// Normalize is idempotent.
func Normalize(raw string) Code {
	c := strings.TrimSpace(width.Fold.String(raw))
	if c == "" {
		return Absent
	}

	// Excel exports render numeric codes as floats ("7203.0").
	c = strings.TrimSuffix(c, ".0")

	if len(c) == 4 {
		return Code(c + string(canonicalSuffix))
	}
	return Code(c)
}

// ParentOf returns the parent common-class code for a subordinate share
// class. The relation holds when the 5th character differs from the
// canonical suffix: the parent shares the first four characters. The
// second return is false for common classes, absent codes, and codes of
// unexpected length.
func ParentOf(c Code) (Code, bool) {
	s := string(c)
	if len(s) != 5 || s[4] == canonicalSuffix {
		return Absent, false
	}
	return Code(s[:4] + string(canonicalSuffix)), true
}

// ShardKey derives the fixed-width distribution token for a record. The
// token is taken from the last two characters of the corporate number so
// that shard placement survives any later change to the entity's security
// or filer codes. Entities without a corporate number fall back to the
// filer code, which the regulator never reassigns; records with neither
// land in the overflow bin.
//
// The token format (J<nn>, E<nn>, "No") is part of the partition path
// contract and must not change.
func ShardKey(corporateNumber, filerCode string) string {
	if n := strings.TrimSpace(corporateNumber); len(n) >= 2 {
		return "J" + n[len(n)-2:]
	}
	if f := strings.TrimSpace(filerCode); len(f) >= 2 {
		return "E" + f[len(f)-2:]
	}
	return "No"
}

package warehousesync

import (
	"strings"
	"unicode"
)

// Operators enter placeholder text instead of leaving identifier fields blank;
// these are treated the same as empty.
var placeholderIdentifiers = map[string]struct{}{
	"none": {},
	"null": {},
	"n/a":  {},
	"na":   {},
}

// Sanitize trims the raw identifier and collapses placeholder values to "".
func Sanitize(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}
	if _, ok := placeholderIdentifiers[strings.ToLower(v)]; ok {
		return ""
	}
	return v
}

// Normalize converts a raw identifier into its canonical comparison key:
// non-alphanumeric characters stripped, upper-cased. Returns "" when the
// input is empty, a placeholder, or contains no alphanumeric characters.
// Idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	v := Sanitize(raw)
	if v == "" {
		return ""
	}
	var b strings.Builder
	for _, ch := range v {
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			b.WriteRune(ch)
		}
	}
	return strings.ToUpper(b.String())
}

// IsValidIdentifier reports whether the raw value counts as present for
// publish eligibility. Validity is independent of normalization.
func IsValidIdentifier(raw string) bool {
	return Sanitize(raw) != ""
}

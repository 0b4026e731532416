package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeDigits maps Persian (۰-۹) and Arabic-Indic (٠-٩) digits to ASCII.
// Storefront search endpoints index titles with ASCII digits.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		}
		return r
	}, s)
}

// NormalizeTitle prepares a product title for comparison: ASCII digits,
// NFKC, case-folded, punctuation and symbols dropped, whitespace collapsed.
func NormalizeTitle(s string) string {
	if s == "" {
		return ""
	}

	// cases.Caser is stateful, so a fresh one per call
	s = norm.NFKC.String(NormalizeDigits(s))
	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

package stores

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/pricewatch/crawler/internal/usecase"
)

// digitsOnly keeps the ASCII digits of s after mapping Persian/Arabic digits
func digitsOnly(s string) string {
	s = usecase.NormalizeDigits(s)
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// parseScaledPrice strips every non-digit from text and multiplies by scale.
// Returns false when no digits remain or the scaled value overflows.
func parseScaledPrice(text string, scale int64) (int64, bool) {
	digits := digitsOnly(text)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || scale <= 0 || n > math.MaxInt64/scale {
		return 0, false
	}
	return n * scale, true
}

// leadingInt parses the integer prefix of s ("12500.00" -> 12500)
func leadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(usecase.NormalizeDigits(s))
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// jsonPrice reads a schema.org price that may be a number or a string
func jsonPrice(v interface{}) (int64, bool) {
	switch p := v.(type) {
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, false
		}
		return int64(p), true
	case json.Number:
		return leadingInt(p.String())
	case string:
		return leadingInt(p)
	default:
		return 0, false
	}
}

// cleanText trims s and collapses inner whitespace runs from HTML text nodes
func cleanText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

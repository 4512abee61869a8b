// Package currency converts localized price strings into decimal amounts.
package currency

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparsable indicates the input contains no usable numeric value.
var ErrUnparsable = errors.New("currency: unparsable amount")

// Parse converts a localized price string to a decimal value.
//
// All characters except digits, separators and a sign are stripped first.
// The rightmost of '.' and ',' is taken as the decimal separator; every
// earlier separator is treated as a thousands separator and removed. An
// empty input parses to zero; input with no digits fails with ErrUnparsable.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)

	lastSep := strings.LastIndexAny(cleaned, ".,")

	var normalized strings.Builder
	normalized.Grow(len(cleaned))
	for i, r := range cleaned {
		switch {
		case r == '.' || r == ',':
			if i == lastSep {
				normalized.WriteByte('.')
			}
		default:
			normalized.WriteRune(r)
		}
	}

	value, err := decimal.NewFromString(normalized.String())
	if err != nil {
		return decimal.Decimal{}, ErrUnparsable
	}
	return value, nil
}

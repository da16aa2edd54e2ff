// Package core provides money parsing and handling utilities.
//
// Sheet amounts travel as display strings ("$1,234.50", "12,34 €"). The content
// layer keeps them verbatim; this file only validates them and converts them to
// cents when a numeric value is needed.
package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in cents.
type Money struct {
	Cents int64
}

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses a sheet amount string into Money.
//
// Currency symbols and spaces are ignored. When both separators are present the
// last one is the decimal separator and the other groups thousands. Commas
// alone group thousands when every group after the first has three digits,
// and are the decimal separator otherwise. Repeated dots group thousands.
//
// Examples:
//
//	ParseAmount("$5.00")     -> 500
//	ParseAmount("$1,234.56") -> 123456
//	ParseAmount("1.234,56 €") -> 123456
//	ParseAmount("12,34")     -> 1234
//	ParseAmount("$1,234")    -> 123400
//	ParseAmount("1.234.567") -> 123456700
func ParseAmount(s string) (Money, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' || r == '+' {
			return r
		}
		return -1
	}, s)
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	case lastDot >= 0 && lastComma >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case lastComma >= 0 && groupsThousands(cleaned, ","):
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case lastDot >= 0 && strings.Count(cleaned, ".") > 1 && groupsThousands(cleaned, "."):
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}
	cents, err := ParseDecimalToCents(cleaned)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// groupsThousands reports whether sep splits s into a leading group of one to
// three digits followed by groups of exactly three.
func groupsThousands(s, sep string) bool {
	groups := strings.Split(s, sep)
	if len(groups) < 2 || len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// Dollars returns the value as a float64 for display purposes only.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}

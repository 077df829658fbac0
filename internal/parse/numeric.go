// Package parse cleans spreadsheet and ad-report cells into typed values.
// Every function here degrades to "no value" on bad input and never panics.
package parse

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Numeric parses a locale-tolerant number. Thousands separators, decimal
// commas, currency markers, percent signs and (non-breaking) whitespace are
// accepted. Negatives may be written as -1, 1- or (1).
func Numeric(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}

	var (
		b        strings.Builder
		minus    int
		minusPos []int
		digits   int
		parens   = strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	)
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == '-' || r == '−':
			minus++
			minusPos = append(minusPos, digits)
		}
	}
	if digits == 0 || minus > 1 {
		return 0, false
	}

	negative := parens
	if minus == 1 {
		// A minus between digits (e.g. "2025-09") is not a sign.
		if minusPos[0] != 0 && minusPos[0] != digits {
			return 0, false
		}
		negative = !negative
	}

	num, ok := normalizeSeparators(b.String())
	if !ok {
		return 0, false
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// NumericPtr is Numeric returning nil for unparseable input.
func NumericPtr(text string) *float64 {
	v, ok := Numeric(text)
	if !ok {
		return nil
	}
	return &v
}

// Count parses a non-negative whole quantity such as a hold count.
func Count(text string) *int {
	v, ok := Numeric(text)
	if !ok || v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return nil
	}
	n := int(v)
	return &n
}

// normalizeSeparators rewrites s (digits, '.' and ',') into a plain decimal
// string. When both separators appear the last one is the decimal mark.
// A lone comma followed by 1-2 digits is a decimal comma; otherwise commas
// group thousands. Repeated periods group thousands.
func normalizeSeparators(s string) (string, bool) {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s[:lastComma], ".", "") + "." + s[lastComma+1:]
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		tail := len(s) - lastComma - 1
		if strings.Count(s, ",") == 1 && tail >= 1 && tail <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	s = strings.TrimSuffix(s, ".")
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if s == "" || strings.Count(s, ".") > 1 {
		return "", false
	}
	return s, true
}

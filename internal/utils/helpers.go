package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrEmptyAmount is returned when an amount cell or token holds no digits.
var ErrEmptyAmount = errors.New("empty amount")

// ParseYMD parses a yyyy-mm-dd date at midnight UTC.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return DateOnly(t), nil
}

// ParseDate tries each layout in order and returns the first match at midnight UTC.
func ParseDate(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// DateOnly strips the clock part, keeping DATE semantics.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var dutchMonths = map[string]time.Month{
	"januari": time.January, "februari": time.February, "maart": time.March,
	"april": time.April, "mei": time.May, "juni": time.June, "juli": time.July,
	"augustus": time.August, "september": time.September, "oktober": time.October,
	"november": time.November, "december": time.December,
}

// ParseDutchDate parses dates such as "3 maart 2025". English month names are accepted too.
func ParseDutchDate(s string) (time.Time, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	if m, ok := dutchMonths[fields[1]]; ok {
		fields[1] = m.String()
	}
	return ParseDate(strings.Join(fields, " "), "2 January 2006", "2 Jan 2006")
}

// ParseAmount parses a money token in either Dutch ("1.234,56", "85,-") or
// English ("1,234.56") notation. A single separator followed by exactly three
// digits is read as a thousands separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.NewReplacer("€", "", "EUR", "", " ", "", " ", "").Replace(strings.TrimSpace(s))
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, ",-"), ".-")
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func normalizeSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.LastIndex(s, sep)
	if len(s)-idx-1 == 3 {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.Replace(s, sep, ".", 1)
}

// MustAmount is ParseAmount for literals known to be valid.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatWeight renders a weight with exactly two decimals ("45" -> "45.00").
func FormatWeight(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// NormalizeWeight re-formats a weight string to two decimals. It is idempotent.
func NormalizeWeight(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty weight")
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return "", fmt.Errorf("parse weight %q: %w", s, err)
	}
	return FormatWeight(d), nil
}

// Truncate shortens s to n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

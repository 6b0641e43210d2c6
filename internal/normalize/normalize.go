// Package normalize parses the loosely-formatted values found in bureau
// reports: currency strings with ambiguous thousands/decimal separators,
// DD/MM/YYYY dates, and NSE socioeconomic codes. Every function is total:
// any input shape resolves to a value or nil, never a panic.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	decimalCommaRe = regexp.MustCompile(`,\d{1,2}$`)
	decimalDotRe   = regexp.MustCompile(`\.\d{1,2}$`)
	nseCodeRe      = regexp.MustCompile(`^(A|B|C1|C2|C3|D1|D2)\b`)
	dateDDMMYYYYRe = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// ToNumber converts a raw JSON value to a finite number. Handles bureau
// formats like "1442083.34", "$ 1.234.567,89" (AR) and "1,234,567.89" (US).
// When both separators appear, whichever comes last is the decimal one.
// Returns nil for anything that does not resolve to a finite number.
func ToNumber(raw any) *float64 {
	switch v := raw.(type) {
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return finite(float64(v))
	case int64:
		return finite(float64(v))
	case string:
		return parseNumericString(v)
	default:
		return nil
	}
}

func parseNumericString(raw string) *float64 {
	// Strip currency symbol and all whitespace.
	var b strings.Builder
	for _, r := range raw {
		if r == '$' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if s == "" {
		return nil
	}

	hasDot := strings.Contains(s, ".")
	hasComma := strings.Contains(s, ",")

	switch {
	case hasDot && hasComma:
		// The last separator is the decimal one, the other groups thousands.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}

	case hasComma:
		// ",d" or ",dd" suffix means decimal comma, otherwise thousands.
		if decimalCommaRe.MatchString(s) {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}

	case hasDot:
		// ".d" or ".dd" suffix means decimal dot, otherwise thousands.
		if !decimalDotRe.MatchString(s) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return finite(n)
}

func finite(n float64) *float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

// ParseNSECode extracts a socioeconomic code from a raw report value.
// The leading token must be one of A, B, C1, C2, C3, D1, D2 (case
// insensitive); anything else returns "" and the caller must treat the NSE
// as not applicable, never guess.
func ParseNSECode(raw any) string {
	s, ok := raw.(string)
	if !ok {
		return ""
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	m := nseCodeRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseDate parses a strict DD/MM/YYYY date into a UTC time. Dates that
// would silently overflow (day 31 in a 30-day month, 30/02, ...) are
// rejected rather than rolled over. Returns nil on any malformation.
func ParseDate(raw any) *time.Time {
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	m := dateDDMMYYYYRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}

	dd, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	yyyy, _ := strconv.Atoi(m[3])
	if dd == 0 || mm == 0 || yyyy == 0 {
		return nil
	}

	d := time.Date(yyyy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	if d.Year() != yyyy || d.Month() != time.Month(mm) || d.Day() != dd {
		return nil
	}
	return &d
}

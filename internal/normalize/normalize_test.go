package normalize

import (
	"math"
	"testing"
)

func TestToNumberFormats(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"PlainDecimal", "1442083.34", 1442083.34},
		{"ArgentineFormat", "$ 1.234.567,89", 1234567.89},
		{"USFormat", "1,234,567.89", 1234567.89},
		{"NoSeparators", "1234567", 1234567},
		{"CommaDecimal", "1234,5", 1234.5},
		{"CommaThousands", "1,234,567", 1234567},
		{"DotThousands", "1.234.567", 1234567},
		{"AlreadyNumber", 42.5, 42.5},
		{"IntValue", 7, 7},
		{"CurrencyWithSpaces", "$  987,65", 987.65},
		{"NegativePlain", "-1500", -1500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToNumber(tc.in)
			if got == nil {
				t.Fatalf("ToNumber(%v) = nil, want %v", tc.in, tc.want)
			}
			if math.Abs(*got-tc.want) > 1e-9 {
				t.Errorf("ToNumber(%v) = %v, want %v", tc.in, *got, tc.want)
			}
		})
	}
}

func TestToNumberRoundTripBothLocales(t *testing.T) {
	// The same amount written in AR and US conventions must parse equal.
	ar := ToNumber("1.234.567,89")
	us := ToNumber("1,234,567.89")
	if ar == nil || us == nil {
		t.Fatal("expected both locale formats to parse")
	}
	if math.Abs(*ar-*us) > 1e-9 {
		t.Errorf("locale mismatch: AR=%v US=%v", *ar, *us)
	}
}

func TestToNumberInvalid(t *testing.T) {
	cases := []struct {
		name string
		in   any
	}{
		{"EmptyString", ""},
		{"Nil", nil},
		{"Garbage", "abc"},
		{"OnlySymbol", "$ "},
		{"Bool", true},
		{"Map", map[string]any{}},
		{"NaN", math.NaN()},
		{"Inf", math.Inf(1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ToNumber(tc.in); got != nil {
				t.Errorf("ToNumber(%v) = %v, want nil", tc.in, *got)
			}
		})
	}
}

func TestParseNSECode(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"C3", "C3"},
		{"c2 - media baja", "C2"},
		{"  a  ", "A"},
		{"B alta", "B"},
		{"D2", "D2"},
		{"C9", ""},
		{"Z", ""},
		{"", ""},
		{nil, ""},
		{12, ""},
		{"C15", ""}, // C1 followed by a digit is not a valid token boundary
	}

	for _, tc := range cases {
		if got := ParseNSECode(tc.in); got != tc.want {
			t.Errorf("ParseNSECode(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d := ParseDate("27/01/2024")
	if d == nil {
		t.Fatal("expected valid date")
	}
	if d.Year() != 2024 || d.Month() != 1 || d.Day() != 27 {
		t.Errorf("unexpected date: %v", d)
	}

	invalid := []any{
		"31/04/2024", // April has 30 days; must not roll over to 01/05
		"30/02/2024",
		"29/02/2023", // not a leap year
		"00/01/2024",
		"15/00/2024",
		"2024/01/27",
		"1/1/2024", // digits must be exact width
		"27-01-2024",
		"",
		nil,
		20240127,
	}
	for _, in := range invalid {
		if got := ParseDate(in); got != nil {
			t.Errorf("ParseDate(%v) = %v, want nil", in, got)
		}
	}

	// Leap day on an actual leap year is fine.
	if ParseDate("29/02/2024") == nil {
		t.Error("expected 29/02/2024 to be valid")
	}
}

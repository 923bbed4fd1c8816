package parsing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	t.Run("valid_round_trip", func(t *testing.T) {
		got, err := ParseDate("06-10-2025")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if FormatISO(got) != "2025-10-06" {
			t.Errorf("expected 2025-10-06, got %s", FormatISO(got))
		}
		if FormatDisplay(got) != "06-10-2025" {
			t.Errorf("expected 06-10-2025, got %s", FormatDisplay(got))
		}
	})

	t.Run("trims_spaces", func(t *testing.T) {
		if _, err := ParseDate("  01-01-2024 "); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	for _, in := range []string{"2025-10-06", "31-02-2025", "6/10/2025", "ayer", "", "32-01-2025", "01-13-2025"} {
		t.Run("rejects_"+in, func(t *testing.T) {
			_, err := ParseDate(in)
			if !errors.Is(err, ErrInvalidDate) {
				t.Errorf("expected ErrInvalidDate for %q, got %v", in, err)
			}
		})
	}
}

func TestParseExtractedDate(t *testing.T) {
	cases := map[string]string{
		"2025-10-06": "2025-10-06",
		"06-10-2025": "2025-10-06",
		"06/10/2025": "2025-10-06",
	}
	for in, want := range cases {
		got, ok := ParseExtractedDate(in)
		if !ok {
			t.Errorf("expected %q to parse", in)
			continue
		}
		if FormatISO(got) != want {
			t.Errorf("%q: expected %s, got %s", in, want, FormatISO(got))
		}
	}

	if _, ok := ParseExtractedDate("octubre 6"); ok {
		t.Error("expected free text to be rejected")
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"15000", "15000"},
		{"15.000,50", "15000.5"},
		{"$ 15.000,50", "15000.5"},
		{"15000,50", "15000.5"},
		{"$15 000", "15000"},
		{"1234.56", "1234.56"},
		{"15.000", "15"},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}

	for _, in := range []string{"abc", "", "$", "1e5", "12,3,4", "1,234.56"} {
		t.Run("rejects_"+in, func(t *testing.T) {
			if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("expected ErrInvalidAmount for %q, got %v", in, err)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"15000":    "$15.000",
		"15000.5":  "$15.000,50",
		"999":      "$999",
		"1234567":  "$1.234.567",
		"-2500.25": "-$2.500,25",
	}
	for in, want := range cases {
		got := FormatAmount(decimal.RequireFromString(in))
		if got != want {
			t.Errorf("%s: expected %s, got %s", in, want, got)
		}
	}
}

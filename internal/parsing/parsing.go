// Package parsing turns user-typed and extracted text into record values.
package parsing

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date layouts.
const (
	DisplayLayout = "02-01-2006"
	ISOLayout     = "2006-01-02"
)

var (
	// ErrInvalidDate is returned for anything that is not a real DD-MM-YYYY date.
	ErrInvalidDate = errors.New("invalid date, expected DD-MM-YYYY")
	// ErrInvalidAmount is returned when the text does not hold a number.
	ErrInvalidAmount = errors.New("invalid amount")
)

// extractedLayouts are tried in order on dates coming back from receipt extraction.
var extractedLayouts = []string{ISOLayout, DisplayLayout, "02/01/2006"}

// ParseDate parses strict DD-MM-YYYY input into a calendar date.
func ParseDate(txt string) (time.Time, error) {
	t, err := time.Parse(DisplayLayout, strings.TrimSpace(txt))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ParseExtractedDate accepts YYYY-MM-DD, DD-MM-YYYY or DD/MM/YYYY.
func ParseExtractedDate(txt string) (time.Time, bool) {
	txt = strings.TrimSpace(txt)
	for _, layout := range extractedLayouts {
		if t, err := time.Parse(layout, txt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatISO renders a date as YYYY-MM-DD.
func FormatISO(t time.Time) string { return t.Format(ISOLayout) }

// FormatDisplay renders a date as DD-MM-YYYY.
func FormatDisplay(t time.Time) string { return t.Format(DisplayLayout) }

// ParseAmount parses a user-typed amount. It drops "$" and spaces, then reads
// a lone comma as the decimal separator when no period follows it, so
// "15.000,50" and "15000,50" both become 15000.50. Otherwise the text is read
// with a period decimal separator.
func ParseAmount(txt string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(txt, "$", "")
	s = strings.Join(strings.Fields(s), "")

	if strings.Count(s, ",") == 1 {
		comma := strings.Index(s, ",")
		if lastDot := strings.LastIndex(s, "."); lastDot == -1 || lastDot < comma {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with a "$" sign and thousands separated by periods,
// the way amounts are shown back to the user.
func FormatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}

	whole, frac, _ := strings.Cut(d.Abs().StringFixed(2), ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "00" {
		b.WriteString("," + frac)
	}
	return sign + "$" + b.String()
}

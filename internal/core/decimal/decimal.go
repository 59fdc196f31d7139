// Package decimal converts the source API's comma-decimal text into numbers
package decimal

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed is returned by Parse for text that is neither absent nor a number
var ErrMalformed = errors.New("decimal: malformed number")

// Absent reports whether s is one of the source's "no value" spellings ("" or "-")
func Absent(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "-"
}

// Parse converts s to a number: the first comma becomes the decimal point.
// Absent values give (nil, nil); anything unparsable, NaN or infinite gives ErrMalformed
func Parse(s string) (*float64, error) {
	if Absent(s) {
		return nil, nil
	}
	t := strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrMalformed
	}
	return &f, nil
}

// Normalize is Parse with malformed input folded into nil
func Normalize(s string) *float64 {
	f, _ := Parse(s)
	return f
}

// Format renders f for a spreadsheet cell: nil is the empty string, otherwise the shortest exact form
func Format(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

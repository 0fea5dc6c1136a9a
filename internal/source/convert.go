package source

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// parseFloat parses a required numeric field. Unparseable input yields NaN so
// the validator can reject the record as non-numeric instead of the whole
// batch failing.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// parseOptionalFloat parses a nullable numeric field. The upstream encodes
// missing values as "None" or an empty string.
func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "-" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		nan := math.NaN()
		return &nan
	}
	return &f
}

// parseVolume parses a volume field. Unparseable input yields -1, which the
// validator rejects as out of range.
func parseVolume(s string) int64 {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return -1
	}
	return v
}

// parseDay parses a YYYY-MM-DD field to UTC midnight. Returns the zero time
// for unparseable input; key-field zeros are rejected by the validator.
func parseDay(s string) time.Time {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

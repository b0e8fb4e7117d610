package etl

import (
	"strings"
	"time"
)

// affirmative lists the string values recognized as true, including the
// Swedish marker used by the registry.
var affirmative = map[string]bool{
	"true": true,
	"1":    true,
	"yes":  true,
	"ja":   true,
	"y":    true,
}

// CoerceBool maps loosely-typed source values onto a nullable boolean.
// Literal booleans pass through; recognized affirmative strings map to
// true, other non-empty strings to false; nil and blank values stay null.
// It never fails.
func CoerceBool(v any) *bool {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return &val
	case *bool:
		return val
	case string:
		s := strings.TrimSpace(strings.ToLower(val))
		if s == "" || s == "nan" || s == "none" || s == "null" {
			return nil
		}
		b := affirmative[s]
		return &b
	default:
		return nil
	}
}

// CoerceDate truncates a raw timestamp string to calendar-date granularity.
// Malformed or missing values come back nil rather than failing the row.
func CoerceDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return nil
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return nil
	}
	return &t
}

// nullIfEmpty converts blank strings to SQL NULL.
func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

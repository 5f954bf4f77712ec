// Package transform converts between in-memory entities and flat remote rows.
package transform

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseFloat defensively parses a numeric column.
// Handles JSON numbers (1000, 12.5), quoted decimals ("12.50") and null.
// Anything unparseable, NaN or infinite becomes 0.
func ParseFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	// Try number first (covers both int and float JSON)
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return finite(f)
	}

	// PostgREST renders numeric columns as strings
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return finite(v)
		}
	}

	return 0
}

// ParseInt parses an integer column with the same rules as ParseFloat,
// truncating any fractional part.
func ParseInt(raw json.RawMessage) int64 {
	f := ParseFloat(raw)
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int64(f)
}

// Number encodes f as a JSON number. Non-finite values encode as 0.
func Number(f float64) json.RawMessage {
	return strconv.AppendFloat(nil, finite(f), 'f', -1, 64)
}

// Int encodes n as a JSON number.
func Int(n int64) json.RawMessage {
	return strconv.AppendInt(nil, n, 10)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// optional maps "" to a null column.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

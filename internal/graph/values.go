package graph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ToString coerces a record value to a string. Unsupported types yield "".
func ToString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// ToFloat64 coerces numeric record values.
func ToFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	default:
		return 0
	}
}

// ToInt64 coerces numeric record values. The second result is false when val
// is not a number.
func ToInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	default:
		return 0, false
	}
}

// ToTimePtr reads native temporal values and RFC3339 strings.
func ToTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case neo4j.Date:
		t := v.Time()
		return &t
	case neo4j.LocalDateTime:
		t := v.Time()
		return &t
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return &parsed
		}
	}
	return nil
}

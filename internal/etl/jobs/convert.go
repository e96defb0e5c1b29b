// Package jobs holds the concrete ETL jobs: the Softbase Evolution
// aggregations (sales, cash flow, customer activity, CEO snapshot,
// department metrics) and the VITAL third-party API jobs (CRM, financial,
// communications, app engagement).
package jobs

import (
	"strconv"
	"time"
)

// Source rows arrive as map[string]interface{} with driver-dependent value
// types; these helpers normalize them. Unknown or nil values degrade to the
// zero value rather than failing, since third-party payload shape is not
// guaranteed.

func asString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return ""
	}
}

func asFloat(v interface{}) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case float32:
		return float64(value)
	case int64:
		return float64(value)
	case int:
		return float64(value)
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return parsed
	case []byte:
		parsed, err := strconv.ParseFloat(string(value), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func asInt(v interface{}) int {
	switch value := v.(type) {
	case int64:
		return int(value)
	case int:
		return value
	case int32:
		return int(value)
	case float64:
		return int(value)
	case string:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func asTime(v interface{}) (time.Time, bool) {
	switch value := v.(type) {
	case time.Time:
		return value, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

package artifact

import (
	"math"
	"strconv"
	"strings"
)

// flattenParams reduces the document's nested training-parameter section to a
// flat string map:
//
//   - null values are dropped,
//   - arrays render as "[a, b, c]" with each element stringified,
//   - objects reduce to their "name" field when present, otherwise dropped,
//   - scalars stringify plainly (integral numbers without a decimal point).
func flattenParams(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		if s, ok := stringifyValue(value); ok {
			out[name] = s
		}
	}
	return out
}

// stringifyValue renders one parameter value. ok=false means the value is
// dropped from the flattened map.
func stringifyValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return formatNumber(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, elem := range t {
			if s, ok := stringifyValue(elem); ok {
				parts = append(parts, s)
			}
		}
		return "[" + strings.Join(parts, ", ") + "]", true
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return name, true
		}
		return "", false
	default:
		return "", false
	}
}

// formatNumber renders JSON numbers the way the document wrote them: 5 stays
// "5", 0.5 stays "0.5".
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Package types contains shared value types used across the framework
package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Any holds a value of arbitrary type together with the framework's
// string-representation rules. The zero Any is empty.
type Any struct {
	value any
}

// NewAny wraps a value. Wrapping a nil value yields the empty Any.
func NewAny(value any) Any {
	return Any{value: value}
}

// Empty reports whether the Any holds no value
func (a Any) Empty() bool {
	return a.value == nil
}

// Value returns the wrapped value, or nil for the empty Any
func (a Any) Value() any {
	return a.value
}

// String renders the value using the framework's representation rules:
// strings render bare, booleans as true/false, numbers via strconv,
// slices as [a,b,c], and maps as {key : value, ...} with keys sorted.
func (a Any) String() string {
	return formatValue(a.value)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case Any:
		return val.String()
	case []string:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = item
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case AnyMap:
		return formatMap(val)
	case map[string]any:
		return formatMap(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " : " + formatValue(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

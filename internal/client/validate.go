package client

import (
	"fmt"
	"strings"
)

// Limits for legacy delta validation. Values outside these bounds are
// dropped rather than applied.
const (
	maxKeyLength    = 100
	maxStringLength = 1000
	maxListLength   = 100
	maxDictSize     = 50
	maxNumberAbs    = 1e10
)

var dangerousKeyFragments = []string{
	"__", "eval", "exec", "import", "open", "file", "system", "subprocess",
}

var dangerousValueFragments = []string{
	"<script", "javascript:", "data:text/html",
}

// IsValidStateKey reports whether a legacy delta entry is safe to merge
// into local state. Containers are validated recursively.
func IsValidStateKey(key string, value any) bool {
	if key == "" || len(key) > maxKeyLength {
		return false
	}
	lower := strings.ToLower(key)
	for _, fragment := range dangerousKeyFragments {
		if strings.Contains(lower, fragment) {
			return false
		}
	}

	switch v := value.(type) {
	case nil, bool:
		return true

	case string:
		if len(v) > maxStringLength {
			return false
		}
		lowerValue := strings.ToLower(v)
		for _, fragment := range dangerousValueFragments {
			if strings.Contains(lowerValue, fragment) {
				return false
			}
		}
		return true

	case float64:
		return v >= -maxNumberAbs && v <= maxNumberAbs

	case int:
		return v >= -maxNumberAbs && v <= maxNumberAbs

	case int64:
		return v >= -maxNumberAbs && v <= maxNumberAbs

	case []any:
		if len(v) > maxListLength {
			return false
		}
		for i, item := range v {
			if !IsValidStateKey(fmt.Sprintf("%s[%d]", key, i), item) {
				return false
			}
		}
		return true

	case map[string]any:
		if len(v) > maxDictSize {
			return false
		}
		for k, item := range v {
			if !IsValidStateKey(key+"."+k, item) {
				return false
			}
		}
		return true

	default:
		return false
	}
}

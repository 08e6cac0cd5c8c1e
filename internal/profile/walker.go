package profile

import "strings"

// payload trees are a tagged union of objects, arrays and scalars once
// decoded from JSON. walkStrings makes the traversal total: every string
// leaf is visited exactly once, carrying the nearest enclosing map key.
func walkStrings(key string, v any, visit func(key, value string)) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			walkStrings(k, val, visit)
		}
	case []any:
		for _, item := range t {
			walkStrings(key, item, visit)
		}
	case []map[string]any:
		for _, item := range t {
			walkStrings(key, item, visit)
		}
	case []string:
		for _, s := range t {
			visit(key, s)
		}
	case string:
		visit(key, t)
	}
}

// keyLooksLikeEmail reports whether a map key marks its value as an email
// field regardless of the value's shape.
func keyLooksLikeEmail(key string) bool {
	return strings.Contains(strings.ToLower(key), "email")
}

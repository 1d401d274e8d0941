package models

import "reflect"

// deepCopyValue deep-copies a value built out of the JSON-like primitives
// plugins stash in Kwargs and Globals: map[string]interface{}, []interface{},
// and scalars. It is used instead of encoding/json round-tripping to avoid
// losing numeric types that never touched the wire.
func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if t == nil {
			return map[string]interface{}{}
		}
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = deepCopyValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = deepCopyValue(vv)
		}
		return out
	default:
		return v
	}
}

// deepEqualValue compares two JSON-like values structurally.
func deepEqualValue(a, b interface{}) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

// normalizeValue treats a nil map the same as an empty map, matching
// canonicalization's "absent input defaults to {}" convention.
func normalizeValue(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok && m == nil {
		return map[string]interface{}{}
	}
	return v
}

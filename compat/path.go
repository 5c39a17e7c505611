package compat

import "strings"

// getPath resolves a dotted path against a nested map[string]any. It returns
// (nil, false) the instant any segment is missing or the value at a segment
// is not a map[string]any (and isn't the final segment).
func getPath(obj map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = obj
	for i, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return v, true
		}
		cur = v
	}
	return nil, false
}

// setPath writes value at a dotted path into obj, creating intermediate
// map[string]any objects as needed. It refuses to overwrite a non-map value
// with a map: if an intermediate segment already holds a non-map, non-nil
// value, setPath stops and returns false rather than clobbering it.
func setPath(obj map[string]any, path string, value any) bool {
	segments := strings.Split(path, ".")
	cur := obj
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			return true
		}
		next, exists := cur[seg]
		if !exists || next == nil {
			m := make(map[string]any)
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return false
		}
		cur = m
	}
	return true
}

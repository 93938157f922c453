// Package jsonpath resolves dot-separated paths inside decoded JSON values
// and renders results the way guests expect: scalars as bare text, composites
// as compact JSON.
package jsonpath

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Parse decodes a JSON document. Numbers decode as float64, the form Render
// expects.
func Parse(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Resolve walks a dot-separated path through objects and arrays. A segment
// of digits indexes an array; any segment indexes an object by key. An empty
// path resolves to the root.
func Resolve(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Render converts a resolved value to the string form handed to guests.
// Strings pass through unquoted, numbers use the shortest decimal form,
// booleans are "true"/"false", null is empty, and objects and arrays
// re-encode as compact JSON.
func Render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(out)
	}
}

// Get parses a document and resolves a path in one step, returning the
// rendered value and whether the path resolved.
func Get(data []byte, path string) (string, bool) {
	root, err := Parse(data)
	if err != nil {
		return "", false
	}
	v, ok := Resolve(root, path)
	if !ok {
		return "", false
	}
	return Render(v), true
}

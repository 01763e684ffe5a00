package config

import (
	"fmt"
	"strconv"
	"strings"
)

// sections are the top-level keys of config.yaml.
var sections = map[string]bool{
	"timezone": true, "store": true, "dialogue": true, "reminders": true,
	"llm": true, "channels": true, "gateway": true, "sheets": true,
	"hooks": true, "logging": true,
}

// ParseConfigPath splits a dotted key such as "reminders.offsets.0.offset"
// into segments. The first segment must be a known section; numeric
// segments index into lists.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: fmt.Sprintf("config path %q contains an empty segment", raw)}
		}
	}
	if !sections[parts[0]] {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown config section %q", parts[0])}
	}
	return parts, nil
}

// child returns node[key] where node is a map or, for numeric keys, a list.
func child(node any, key string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		v, ok := n[key]
		return v, ok
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(n) {
			return nil, false
		}
		return n[i], true
	}
	return nil, false
}

// GetValueAtPath walks root along path.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	var cur any = root
	for _, key := range path {
		next, ok := child(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// SetValueAtPath stores value at path, creating maps on the way. A list
// element can be replaced but a list is never grown; scalars in the way are
// replaced by maps.
func SetValueAtPath(root map[string]any, path []string, value any) {
	setIn(root, path, value)
}

func setIn(node map[string]any, path []string, value any) {
	key := path[0]
	if len(path) == 1 {
		node[key] = value
		return
	}
	switch next := node[key].(type) {
	case map[string]any:
		setIn(next, path[1:], value)
	case []any:
		if i, err := strconv.Atoi(path[1]); err == nil && i >= 0 && i < len(next) {
			if len(path) == 2 {
				next[i] = value
				return
			}
			m, ok := next[i].(map[string]any)
			if !ok {
				m = map[string]any{}
				next[i] = m
			}
			setIn(m, path[2:], value)
			return
		}
		m := map[string]any{}
		node[key] = m
		setIn(m, path[1:], value)
	default:
		m := map[string]any{}
		node[key] = m
		setIn(m, path[1:], value)
	}
}

// UnsetValueAtPath deletes the map entry at path. List elements are not
// removed. It reports whether anything was deleted.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	parent, ok := GetValueAtPath(root, path[:len(path)-1])
	if !ok {
		return false
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}

package recipe

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Properties is the merged build/factory property bag handed read-only to
// recipe code. Build properties override factory properties. The type
// exposes no mutators; accessors return copies, so recipe code cannot
// reach the underlying values.
type Properties struct {
	values map[string]any
}

// MergeProperties merges factory and build properties, build winning on
// conflicts. Values are deep-copied on the way in.
func MergeProperties(factory, build map[string]any) *Properties {
	values := make(map[string]any, len(factory)+len(build))
	for k, v := range factory {
		values[k] = deepCopyValue(v)
	}
	for k, v := range build {
		values[k] = deepCopyValue(v)
	}
	return &Properties{values: values}
}

// ParsePropertiesJSON decodes a JSON object of properties, as passed on
// the command line.
func ParsePropertiesJSON(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("properties are not a JSON object: %w", err)
	}
	return values, nil
}

// Has reports whether the key is present.
func (p *Properties) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Value returns the raw value for key. Compound values are deep-copied.
func (p *Properties) Value(key string) (any, bool) {
	v, ok := p.values[key]
	if !ok {
		return nil, false
	}
	return deepCopyValue(v), true
}

// String returns the value for key if it is a string.
func (p *Properties) String(key string) (string, bool) {
	s, ok := p.values[key].(string)
	return s, ok
}

// Int returns the value for key if it is numeric. JSON numbers decode as
// float64; integral floats are accepted.
func (p *Properties) Int(key string) (int, bool) {
	switch v := p.values[key].(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Bool returns the value for key if it is a bool.
func (p *Properties) Bool(key string) (bool, bool) {
	b, ok := p.values[key].(bool)
	return b, ok
}

// List returns the value for key if it is a list. The list is deep-copied.
func (p *Properties) List(key string) ([]any, bool) {
	l, ok := p.values[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = deepCopyValue(v)
	}
	return out, true
}

// Keys returns the sorted property names.
func (p *Properties) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of properties.
func (p *Properties) Len() int { return len(p.values) }

// Map returns a deep copy of the whole bag.
func (p *Properties) Map() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

package osm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Attributes is the tag bag of an element. Names are unique, values are
// always strings, and the original key order is kept for re-serialization.
// The zero value is an empty bag.
type Attributes struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewAttributes builds a bag from name/value pairs, in order.
func NewAttributes(pairs ...string) Attributes {
	if len(pairs)%2 != 0 {
		panic("osm: NewAttributes requires an even number of arguments")
	}
	m := orderedmap.New[string, string](len(pairs) / 2)
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return Attributes{m: m}
}

// Get returns the value for name and whether it is present.
func (a Attributes) Get(name string) (string, bool) {
	if a.m == nil {
		return "", false
	}
	return a.m.Get(name)
}

// Value returns the value for name, or "" when absent.
func (a Attributes) Value(name string) string {
	v, _ := a.Get(name)
	return v
}

// Has reports whether name is present.
func (a Attributes) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// Len returns the number of attributes.
func (a Attributes) Len() int {
	if a.m == nil {
		return 0
	}
	return a.m.Len()
}

// Each calls fn for every attribute in original order.
func (a Attributes) Each(fn func(name, value string)) {
	if a.m == nil {
		return
	}
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Keys returns the attribute names in original order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, a.Len())
	a.Each(func(name, _ string) {
		keys = append(keys, name)
	})
	return keys
}

// Map returns a copy of the attributes as a plain map.
func (a Attributes) Map() map[string]string {
	out := make(map[string]string, a.Len())
	a.Each(func(name, value string) {
		out[name] = value
	})
	return out
}

// MarshalJSON writes the attributes as an object in original key order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a.m == nil {
		return []byte("{}"), nil
	}
	return a.m.MarshalJSON()
}

// UnmarshalJSON reads a JSON object, stringifying scalar values.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		a.m = nil
		return nil
	}

	raw := orderedmap.New[string, any]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("tags must be an object: %w", err)
	}

	m := orderedmap.New[string, string](raw.Len())
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		s, err := stringify(pair.Value)
		if err != nil {
			return fmt.Errorf("tag %q: %w", pair.Key, err)
		}
		m.Set(pair.Key, s)
	}
	a.m = m
	return nil
}

// stringify renders a decoded JSON value as an attribute string. Scalars go
// through cast; objects and arrays keep their compact JSON text.
func stringify(v any) (string, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return cast.ToStringE(v)
}

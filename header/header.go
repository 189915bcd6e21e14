// Package header implements the case-insensitive header container used
// throughout the cache pipeline. It folds "-" and "_" to the same canonical
// form on input but remembers the most recently written display form.
package header

import "strings"

// Map is a case-insensitive, insertion-order-preserving header container.
// The zero value is not usable; construct with New.
type Map struct {
	entries map[string]entry
	order   []string
}

type entry struct {
	display string
	value   string
}

// New returns an empty Map.
func New() *Map {
	return &Map{entries: make(map[string]entry)}
}

// canon folds a header name to its canonical comparison form: lowercase
// with every "_" treated as "-".
func canon(name string) string {
	b := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			c = '-'
		} else if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}

// Set stores value under name, overwriting any prior value for the same
// canonical key. The display form of name becomes the one returned on
// iteration.
func (m *Map) Set(name, value string) {
	key := canon(name)
	if _, ok := m.entries[key]; !ok {
		m.order = append(m.order, key)
	}
	m.entries[key] = entry{display: name, value: value}
}

// Get returns the value stored for name, folding "-"/"_" and case on
// lookup. The second return value is false if name was never set.
func (m *Map) Get(name string) (string, bool) {
	e, ok := m.entries[canon(name)]
	return e.value, ok
}

// Del removes name from the map.
func (m *Map) Del(name string) {
	key := canon(name)
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Has reports whether name is set, regardless of value.
func (m *Map) Has(name string) bool {
	_, ok := m.entries[canon(name)]
	return ok
}

// Equals reports whether name's value equals want, case-insensitively,
// matching the exact-token comparisons §4.2 requires.
func (m *Map) Equals(name, want string) bool {
	val, ok := m.Get(name)
	return ok && strings.EqualFold(val, want)
}

// Each calls fn once per header, in the order the canonical key was first
// set, with the most recently written display form and value.
func (m *Map) Each(fn func(name, value string)) {
	for _, key := range m.order {
		e := m.entries[key]
		fn(e.display, e.value)
	}
}

// Len returns the number of distinct headers stored.
func (m *Map) Len() int {
	return len(m.order)
}

// FromHTTP builds a Map from a net/http-style header multimap, keeping the
// last value for each name (the covered subset carries no multi-value
// semantics).
func FromHTTP(h map[string][]string) *Map {
	m := New()
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		m.Set(name, values[len(values)-1])
	}
	return m
}

// ToHTTP renders the map back into a net/http-style header multimap.
func (m *Map) ToHTTP() map[string][]string {
	out := make(map[string][]string, m.Len())
	m.Each(func(name, value string) {
		out[name] = []string{value}
	})
	return out
}

package bsonjs

// Map is an insertion-ordered string-keyed map of Values.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap constructs an empty Map.
func NewMap() *Map {
	return &Map{values: map[string]Value{}}
}

// Set stores val under key. Replacing an existing key keeps its position.
func (m *Map) Set(key string, val Value) *Map {
	if m.values == nil {
		m.values = map[string]Value{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = val
	return m
}

// Get returns the value under key, or Absent.
func (m *Map) Get(key string) Value {
	if m == nil {
		return Value{}
	}
	return m.values[key]
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map) Range(fn func(key string, val Value) bool) {
	if m == nil {
		return
	}
	for _, key := range m.keys {
		if !fn(key, m.values[key]) {
			return
		}
	}
}

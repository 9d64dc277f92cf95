package migrate

// IDMap records the target row id assigned to each migrated topic path, so
// later archive writes can reference it.
type IDMap struct {
	ids map[string]int64
}

// NewIDMap returns an empty map.
func NewIDMap() *IDMap {
	return &IDMap{ids: make(map[string]int64)}
}

// Put records id for path, replacing any earlier id.
func (m *IDMap) Put(path string, id int64) {
	m.ids[path] = id
}

// Lookup returns the id recorded for path.
func (m *IDMap) Lookup(path string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	id, ok := m.ids[path]
	return id, ok
}

// Len reports how many paths are recorded.
func (m *IDMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

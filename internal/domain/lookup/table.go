package lookup

import (
	"fmt"
	"sort"
)

// Entry is one raw key/value pair as written in configuration.
type Entry struct {
	Key   string  `yaml:"key" json:"key"`
	Value float64 `yaml:"value" json:"value"`
}

// Table maps normalized keys to values. It is immutable once built.
type Table struct {
	name   string
	values map[string]float64
	def    float64
	hasDef bool
}

// NewTable builds a table from raw entries. Keys that normalize to the same
// string collapse when they carry the same value and are rejected with
// ErrConflictingKey otherwise.
func NewTable(name string, entries []Entry) (*Table, error) {
	t := &Table{name: name, values: make(map[string]float64, len(entries))}
	origin := make(map[string]string, len(entries))
	for _, e := range entries {
		k := NormalizeKey(e.Key)
		if k == "" {
			return nil, fmt.Errorf("table %s: %w", name, ErrEmptyKey)
		}
		if prev, ok := t.values[k]; ok {
			if prev != e.Value {
				return nil, fmt.Errorf("table %s: %q=%v and %q=%v: %w",
					name, origin[k], prev, e.Key, e.Value, ErrConflictingKey)
			}
			continue
		}
		t.values[k] = e.Value
		origin[k] = e.Key
	}
	return t, nil
}

// WithDefault returns a copy of t that answers def for unknown keys.
func (t *Table) WithDefault(def float64) *Table {
	c := *t
	c.def = def
	c.hasDef = true
	return &c
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Len returns the number of distinct normalized keys.
func (t *Table) Len() int { return len(t.values) }

// Lookup normalizes raw and returns its value. ok is false on a miss; the
// returned value is then the table default (zero when none is set).
func (t *Table) Lookup(raw string) (float64, bool) {
	v, ok := t.values[NormalizeKey(raw)]
	if !ok {
		return t.def, false
	}
	return v, true
}

// Default returns the miss value and whether one was configured.
func (t *Table) Default() (float64, bool) { return t.def, t.hasDef }

// Max returns the largest value in the table.
func (t *Table) Max() float64 {
	var m float64
	first := true
	for _, v := range t.values {
		if first || v > m {
			m = v
			first = false
		}
	}
	return m
}

// Keys returns the normalized keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

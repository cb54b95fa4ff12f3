package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

// Memory is an in-process Source, used for dry runs over ingest files and
// in tests.
type Memory struct {
	mu          sync.RWMutex
	entities    map[int64]model.Entity
	records     map[string][]model.SourceRecord
	counters    map[int64]model.Counters
	unavailable map[string]bool
}

// NewMemory creates an empty source.
func NewMemory() *Memory {
	return &Memory{
		entities:    make(map[int64]model.Entity),
		records:     make(map[string][]model.SourceRecord),
		counters:    make(map[int64]model.Counters),
		unavailable: make(map[string]bool),
	}
}

// NewMemoryFromDataset validates ds and loads it.
func NewMemoryFromDataset(ds *Dataset) (*Memory, error) {
	entities, err := ds.Validate()
	if err != nil {
		return nil, err
	}
	m := NewMemory()
	for _, e := range entities {
		m.PutEntity(e)
	}
	for _, r := range ds.Records {
		m.AddRecord(r)
	}
	for _, c := range ds.Counters {
		m.SetCounters(c.EntityID, c.Counters)
	}
	return m, nil
}

// PutEntity adds or replaces an entity.
func (m *Memory) PutEntity(e model.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.ID] = e
}

// AddRecord appends a raw row.
func (m *Memory) AddRecord(r model.SourceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.Source] = append(m.records[r.Source], r)
}

// SetCounters sets an entity's cumulative counters.
func (m *Memory) SetCounters(id int64, c model.Counters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[id] = c
}

// SetUnavailable makes Records fail for source.
func (m *Memory) SetUnavailable(source string, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable[source] = down
}

// Entities returns every entity ordered by id.
func (m *Memory) Entities(context.Context) ([]model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Entity returns one entity.
func (m *Memory) Entity(_ context.Context, id int64) (model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return e, fmt.Errorf("%w: %d", ErrEntityNotFound, id)
	}
	return e, nil
}

// Records returns a copy of the rows of source.
func (m *Memory) Records(_ context.Context, source string) ([]model.SourceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable[source] {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, source)
	}
	return append([]model.SourceRecord(nil), m.records[source]...), nil
}

// Counters returns a copy of the counters.
func (m *Memory) Counters(context.Context) (map[int64]model.Counters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]model.Counters, len(m.counters))
	for id, c := range m.counters {
		out[id] = c
	}
	return out, nil
}

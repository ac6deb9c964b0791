// Package memory provides a fully in-memory store.Store implementation.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mirumirumi/JsStore/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a mutex-guarded map-of-maps keyed by table then record key.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]store.Record
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		tables: make(map[string]map[string]store.Record),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// Put inserts or upserts a record.
func (m *Store) Put(_ context.Context, table string, rec store.Record, overwrite bool) error {
	if table == "" {
		return store.ErrNoTable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return putLocked(m.tables, table, rec, overwrite)
}

// Get returns the record for key, or store.ErrNotFound.
func (m *Store) Get(_ context.Context, table, key string) (*store.Record, error) {
	if table == "" {
		return nil, store.ErrNoTable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.tables[table][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

// Delete removes key and reports whether it existed.
func (m *Store) Delete(_ context.Context, table, key string) (bool, error) {
	if table == "" {
		return false, store.ErrNoTable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[table]
	if !ok {
		return false, nil
	}
	if _, exists := t[key]; !exists {
		return false, nil
	}
	delete(t, key)
	return true, nil
}

// Scan returns records inside r in ascending key order.
func (m *Store) Scan(_ context.Context, table string, r store.Range, limit, offset int) ([]store.Record, error) {
	if table == "" {
		return nil, store.ErrNoTable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := m.matchingKeysLocked(table, r)

	if offset > 0 {
		if offset >= len(keys) {
			return nil, nil
		}
		keys = keys[offset:]
	}
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]store.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.tables[table][k])
	}
	return out, nil
}

// Count returns the number of records inside r.
func (m *Store) Count(_ context.Context, table string, r store.Range) (int, error) {
	if table == "" {
		return 0, store.ErrNoTable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.matchingKeysLocked(table, r)), nil
}

// ApplyBatch applies all mutations atomically. Mutations are staged
// against copies of the affected tables and committed only when every
// mutation succeeds.
func (m *Store) ApplyBatch(_ context.Context, muts []store.Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stage copies of every table the batch touches.
	staged := make(map[string]map[string]store.Record)
	for _, mut := range muts {
		if mut.Table == "" {
			return store.ErrNoTable
		}
		if _, ok := staged[mut.Table]; ok {
			continue
		}
		cp := make(map[string]store.Record, len(m.tables[mut.Table]))
		for k, v := range m.tables[mut.Table] {
			cp[k] = v
		}
		staged[mut.Table] = cp
	}

	for _, mut := range muts {
		switch mut.Kind {
		case store.MutationPut:
			if err := putLocked(staged, mut.Table, mut.Record, mut.Overwrite); err != nil {
				return err
			}
		case store.MutationDelete:
			delete(staged[mut.Table], mut.Key)
		}
	}

	// Commit.
	for table, recs := range staged {
		m.tables[table] = recs
	}
	return nil
}

// matchingKeysLocked returns the sorted keys of table inside r.
func (m *Store) matchingKeysLocked(table string, r store.Range) []string {
	t := m.tables[table]
	keys := make([]string, 0, len(t))
	for k := range t {
		if r.Contains(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func putLocked(tables map[string]map[string]store.Record, table string, rec store.Record, overwrite bool) error {
	t, ok := tables[table]
	if !ok {
		t = make(map[string]store.Record)
		tables[table] = t
	}
	if _, exists := t[rec.Key]; exists && !overwrite {
		return store.ErrDuplicateKey
	}
	rec.UpdatedAt = time.Now().UTC()
	t[rec.Key] = rec
	return nil
}

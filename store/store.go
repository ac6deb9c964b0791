// Package store defines the narrow persistence interface the query
// executor runs against. Backends: SQLite (Bun ORM) and Memory.
//
// The dispatch engine never touches the store directly; only the query
// executor translates operations into store calls, so a backend needs no
// knowledge of queries, sessions, or dispatch.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist in a table.
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicateKey is returned by Put without overwrite when the key
	// already exists.
	ErrDuplicateKey = errors.New("store: duplicate key")

	// ErrNoTable is returned when an operation names an empty table.
	ErrNoTable = errors.New("store: table name required")
)

// Record is a single keyed value in a table. Value holds the
// operation-specific encoding (JSON throughout this module).
type Record struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Range selects a contiguous span of keys. With a non-empty Prefix, keys
// matching the prefix are selected and From/To are ignored. Otherwise
// From (inclusive) and To (inclusive) bound the span; an empty bound is
// open on that side. A zero Range selects every key.
type Range struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// Contains reports whether key falls inside the range.
func (r Range) Contains(key string) bool {
	if r.Prefix != "" {
		return len(key) >= len(r.Prefix) && key[:len(r.Prefix)] == r.Prefix
	}
	if r.From != "" && key < r.From {
		return false
	}
	if r.To != "" && key > r.To {
		return false
	}
	return true
}

// MutationKind identifies a batch mutation operation.
type MutationKind string

const (
	MutationPut    MutationKind = "put"
	MutationDelete MutationKind = "delete"
)

// Mutation is a single entry of an atomic batch. Put mutations carry
// Record and Overwrite; Delete mutations carry Key.
type Mutation struct {
	Kind      MutationKind
	Table     string
	Record    Record
	Key       string
	Overwrite bool
}

// Store is the persistence interface. All scans return records in
// ascending key order.
type Store interface {
	// Put inserts or, when overwrite is set, upserts a record.
	// Without overwrite an existing key yields ErrDuplicateKey.
	Put(ctx context.Context, table string, rec Record, overwrite bool) error

	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, table, key string) (*Record, error)

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, table, key string) (bool, error)

	// Scan returns up to limit records inside r, skipping offset, in
	// ascending key order. A zero limit means no limit.
	Scan(ctx context.Context, table string, r Range, limit, offset int) ([]Record, error)

	// Count returns the number of records inside r.
	Count(ctx context.Context, table string, r Range) (int, error)

	// ApplyBatch applies all mutations atomically: either every
	// mutation takes effect or none does.
	ApplyBatch(ctx context.Context, muts []Mutation) error

	// Migrate runs schema setup.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Package query defines the query operations the public API exposes —
// select, insert, update, remove, count, transaction, union, intersect —
// and the Executor that translates each one into store calls.
//
// Operations travel through the dispatch engine as opaque name/payload
// pairs; this package is the only place that gives them meaning. The
// same Executor backs both execution paths: inside the background
// session and directly in the caller's context.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/mirumirumi/JsStore/store"
)

// Operation names understood by the built-in executor.
const (
	OpSelect      = "select"
	OpInsert      = "insert"
	OpUpdate      = "update"
	OpRemove      = "remove"
	OpCount       = "count"
	OpTransaction = "transaction"
	OpUnion       = "union"
	OpIntersect   = "intersect"
)

// Select returns the records of a table inside an optional key range.
type Select struct {
	From   string      `json:"from"`
	Where  store.Range `json:"where,omitzero"`
	Limit  int         `json:"limit,omitempty"`
	Offset int         `json:"offset,omitempty"`
}

// Insert writes records into a table. With Upsert set, existing keys are
// overwritten instead of failing the operation.
type Insert struct {
	Into    string         `json:"into"`
	Records []store.Record `json:"records"`
	Upsert  bool           `json:"upsert,omitempty"`
}

// Update replaces the value of every matched record with Set. Records
// are matched by explicit Keys, by Where, or both.
type Update struct {
	In    string          `json:"in"`
	Keys  []string        `json:"keys,omitempty"`
	Where store.Range     `json:"where,omitzero"`
	Set   json.RawMessage `json:"set"`
}

// Remove deletes the matched records of a table.
type Remove struct {
	From  string      `json:"from"`
	Keys  []string    `json:"keys,omitempty"`
	Where store.Range `json:"where,omitzero"`
}

// Count returns the number of records inside an optional key range.
type Count struct {
	From  string      `json:"from"`
	Where store.Range `json:"where,omitzero"`
}

// TxOp is a single step of a Transaction. Exactly one field is non-nil.
type TxOp struct {
	Insert *Insert `json:"insert,omitempty"`
	Update *Update `json:"update,omitempty"`
	Remove *Remove `json:"remove,omitempty"`
}

// Transaction applies its steps atomically: either every step takes
// effect or none does.
type Transaction struct {
	Ops []TxOp `json:"ops"`
}

// Union merges the results of several selects, deduplicating by key.
// The first occurrence of a key wins, in select order.
type Union struct {
	Selects []Select `json:"selects"`
}

// Intersect returns the records of the first select whose keys appear
// in the results of every other select.
type Intersect struct {
	Selects []Select `json:"selects"`
}

// ── Result encoding ─────────────────────────────────

// countResult is the wire shape of every mutation-style result.
type countResult struct {
	Count int64 `json:"count"`
}

// EncodeRecords encodes a record-list result payload.
func EncodeRecords(recs []store.Record) ([]byte, error) {
	if recs == nil {
		recs = []store.Record{}
	}
	return json.Marshal(recs)
}

// DecodeRecords decodes a record-list result payload produced by the
// select, union, and intersect operations.
func DecodeRecords(data []byte) ([]store.Record, error) {
	var recs []store.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("query: decode records result: %w", err)
	}
	return recs, nil
}

// EncodeCount encodes a count-style result payload.
func EncodeCount(n int64) ([]byte, error) {
	return json.Marshal(countResult{Count: n})
}

// DecodeCount decodes the result payload of the insert, update, remove,
// count, and transaction operations.
func DecodeCount(data []byte) (int64, error) {
	var r countResult
	if err := json.Unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("query: decode count result: %w", err)
	}
	return r.Count, nil
}

package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mirumirumi/JsStore/store"
)

// Executor runs operations against a store. One Executor serves both
// execution paths: the background session runner and the engine's
// direct fallback.
type Executor struct {
	store    store.Store
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an Executor with the built-in operations
// registered.
func NewExecutor(s store.Store, logger *slog.Logger) *Executor {
	e := &Executor{
		store:    s,
		registry: NewRegistry(),
		logger:   logger,
	}

	e.registry.Register(OpSelect, e.handleSelect)
	e.registry.Register(OpInsert, e.handleInsert)
	e.registry.Register(OpUpdate, e.handleUpdate)
	e.registry.Register(OpRemove, e.handleRemove)
	e.registry.Register(OpCount, e.handleCount)
	e.registry.Register(OpTransaction, e.handleTransaction)
	e.registry.Register(OpUnion, e.handleUnion)
	e.registry.Register(OpIntersect, e.handleIntersect)

	return e
}

// Registry exposes the operation registry so applications can register
// custom operations next to the built-ins.
func (e *Executor) Registry() *Registry { return e.registry }

// Execute looks up the handler for name and runs it.
func (e *Executor) Execute(ctx context.Context, name string, payload []byte) ([]byte, error) {
	handler, ok := e.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return handler(ctx, payload)
}

// ── Built-in handlers ───────────────────────────────

func (e *Executor) handleSelect(ctx context.Context, payload []byte) ([]byte, error) {
	var q Select
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("query: unmarshal select: %w", err)
	}

	recs, err := e.store.Scan(ctx, q.From, q.Where, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	return EncodeRecords(recs)
}

func (e *Executor) handleInsert(ctx context.Context, payload []byte) ([]byte, error) {
	var q Insert
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("query: unmarshal insert: %w", err)
	}

	for _, rec := range q.Records {
		if err := e.store.Put(ctx, q.Into, rec, q.Upsert); err != nil {
			return nil, err
		}
	}
	return EncodeCount(int64(len(q.Records)))
}

func (e *Executor) handleUpdate(ctx context.Context, payload []byte) ([]byte, error) {
	var q Update
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("query: unmarshal update: %w", err)
	}

	keys, err := e.matchKeys(ctx, q.In, q.Keys, q.Where)
	if err != nil {
		return nil, err
	}

	for _, k := range keys {
		rec := store.Record{Key: k, Value: q.Set}
		if err := e.store.Put(ctx, q.In, rec, true); err != nil {
			return nil, err
		}
	}
	return EncodeCount(int64(len(keys)))
}

func (e *Executor) handleRemove(ctx context.Context, payload []byte) ([]byte, error) {
	var q Remove
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("query: unmarshal remove: %w", err)
	}

	keys, err := e.matchKeys(ctx, q.From, q.Keys, q.Where)
	if err != nil {
		return nil, err
	}

	var removed int64
	for _, k := range keys {
		existed, err := e.store.Delete(ctx, q.From, k)
		if err != nil {
			return nil, err
		}
		if existed {
			removed++
		}
	}
	return EncodeCount(removed)
}

func (e *Executor) handleCount(ctx context.Context, payload []byte) ([]byte, error) {
	var q Count
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("query: unmarshal count: %w", err)
	}

	n, err := e.store.Count(ctx, q.From, q.Where)
	if err != nil {
		return nil, err
	}
	return EncodeCount(int64(n))
}

func (e *Executor) handleTransaction(ctx context.Context, payload []byte) ([]byte, error) {
	var q Transaction
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("query: unmarshal transaction: %w", err)
	}

	muts, err := e.planTransaction(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := e.store.ApplyBatch(ctx, muts); err != nil {
		return nil, err
	}
	return EncodeCount(int64(len(muts)))
}

// planTransaction flattens the transaction steps into store mutations.
// Update and remove steps resolve their matched keys up front, so the
// whole transaction applies against a single consistent snapshot.
func (e *Executor) planTransaction(ctx context.Context, q Transaction) ([]store.Mutation, error) {
	var muts []store.Mutation
	for i, op := range q.Ops {
		switch {
		case op.Insert != nil:
			for _, rec := range op.Insert.Records {
				muts = append(muts, store.Mutation{
					Kind:      store.MutationPut,
					Table:     op.Insert.Into,
					Record:    rec,
					Overwrite: op.Insert.Upsert,
				})
			}
		case op.Update != nil:
			keys, err := e.matchKeys(ctx, op.Update.In, op.Update.Keys, op.Update.Where)
			if err != nil {
				return nil, err
			}
			for _, k := range keys {
				muts = append(muts, store.Mutation{
					Kind:      store.MutationPut,
					Table:     op.Update.In,
					Record:    store.Record{Key: k, Value: op.Update.Set},
					Overwrite: true,
				})
			}
		case op.Remove != nil:
			keys, err := e.matchKeys(ctx, op.Remove.From, op.Remove.Keys, op.Remove.Where)
			if err != nil {
				return nil, err
			}
			for _, k := range keys {
				muts = append(muts, store.Mutation{
					Kind:  store.MutationDelete,
					Table: op.Remove.From,
					Key:   k,
				})
			}
		default:
			return nil, fmt.Errorf("query: transaction op %d has no operation", i)
		}
	}
	return muts, nil
}

func (e *Executor) handleUnion(ctx context.Context, payload []byte) ([]byte, error) {
	var q Union
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("query: unmarshal union: %w", err)
	}

	seen := make(map[string]struct{})
	var merged []store.Record
	for _, sel := range q.Selects {
		recs, err := e.store.Scan(ctx, sel.From, sel.Where, sel.Limit, sel.Offset)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if _, dup := seen[rec.Key]; dup {
				continue
			}
			seen[rec.Key] = struct{}{}
			merged = append(merged, rec)
		}
	}
	return EncodeRecords(merged)
}

func (e *Executor) handleIntersect(ctx context.Context, payload []byte) ([]byte, error) {
	var q Intersect
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("query: unmarshal intersect: %w", err)
	}
	if len(q.Selects) == 0 {
		return EncodeRecords(nil)
	}

	first, err := e.store.Scan(ctx, q.Selects[0].From, q.Selects[0].Where, q.Selects[0].Limit, q.Selects[0].Offset)
	if err != nil {
		return nil, err
	}

	// Keys present in every other select.
	surviving := make(map[string]struct{}, len(first))
	for _, rec := range first {
		surviving[rec.Key] = struct{}{}
	}
	for _, sel := range q.Selects[1:] {
		recs, err := e.store.Scan(ctx, sel.From, sel.Where, sel.Limit, sel.Offset)
		if err != nil {
			return nil, err
		}
		present := make(map[string]struct{}, len(recs))
		for _, rec := range recs {
			present[rec.Key] = struct{}{}
		}
		for k := range surviving {
			if _, ok := present[k]; !ok {
				delete(surviving, k)
			}
		}
	}

	var out []store.Record
	for _, rec := range first {
		if _, ok := surviving[rec.Key]; ok {
			out = append(out, rec)
		}
	}
	return EncodeRecords(out)
}

// matchKeys resolves the target keys of an update or remove: explicit
// keys that exist, plus every key inside the range when one is given.
// With neither keys nor a range, nothing matches.
func (e *Executor) matchKeys(ctx context.Context, table string, keys []string, r store.Range) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})

	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		_, err := e.store.Get(ctx, table, k)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}

	if r != (store.Range{}) {
		recs, err := e.store.Scan(ctx, table, r, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if _, dup := seen[rec.Key]; dup {
				continue
			}
			seen[rec.Key] = struct{}{}
			out = append(out, rec.Key)
		}
	}

	return out, nil
}

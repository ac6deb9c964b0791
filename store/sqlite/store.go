package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/mirumirumi/JsStore/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a Bun ORM implementation of store.Store on SQLite.
type Store struct {
	db     *bun.DB
	logger *slog.Logger

	// ownsDB is set when the Store opened the database itself (via Open)
	// and is therefore responsible for closing it.
	ownsDB bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store on an existing *bun.DB. The caller owns the db
// lifecycle — the Store will not close it on Close().
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens (or creates) a SQLite database at dsn and returns a Store
// that owns the connection. Use ":memory:" for an in-memory database.
func Open(dsn string, opts ...Option) (*Store, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("jsstore/sqlite: open %q: %w", dsn, err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	s := New(db, opts...)
	s.ownsDB = true
	return s, nil
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Migrate creates the records table and its key index.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*recordModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("jsstore/sqlite: create records table: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*recordModel)(nil)).
		Index("idx_jsstore_records_tbl_key").
		Column("tbl", "key").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("jsstore/sqlite: create records index: %w", err)
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database only when the Store opened it itself.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// Put inserts or, when overwrite is set, upserts a record.
func (s *Store) Put(ctx context.Context, table string, rec store.Record, overwrite bool) error {
	if table == "" {
		return store.ErrNoTable
	}
	return s.put(ctx, s.db, table, rec, overwrite)
}

// put runs the insert against db, which is either the root *bun.DB or a
// transaction inside ApplyBatch.
func (s *Store) put(ctx context.Context, db bun.IDB, table string, rec store.Record, overwrite bool) error {
	m := toRecordModel(table, rec)

	q := db.NewInsert().Model(m)
	if overwrite {
		q = q.On("CONFLICT (tbl, key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at")
	}

	if _, err := q.Exec(ctx); err != nil {
		if isDuplicateKey(err) {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("jsstore/sqlite: put %s/%s: %w", table, rec.Key, err)
	}
	return nil
}

// Get returns the record for key, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, table, key string) (*store.Record, error) {
	if table == "" {
		return nil, store.ErrNoTable
	}

	m := new(recordModel)
	err := s.db.NewSelect().
		Model(m).
		Where("tbl = ?", table).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("jsstore/sqlite: get %s/%s: %w", table, key, err)
	}

	rec := fromRecordModel(m)
	return &rec, nil
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, table, key string) (bool, error) {
	if table == "" {
		return false, store.ErrNoTable
	}

	res, err := s.db.NewDelete().
		Model((*recordModel)(nil)).
		Where("tbl = ?", table).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("jsstore/sqlite: delete %s/%s: %w", table, key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("jsstore/sqlite: delete rows affected: %w", err)
	}
	return affected > 0, nil
}

// Scan returns records inside r in ascending key order.
func (s *Store) Scan(ctx context.Context, table string, r store.Range, limit, offset int) ([]store.Record, error) {
	if table == "" {
		return nil, store.ErrNoTable
	}

	var models []recordModel
	q := s.db.NewSelect().
		Model(&models).
		Where("tbl = ?", table).
		Order("key ASC")
	q = applyRange(q, r)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("jsstore/sqlite: scan %s: %w", table, err)
	}

	out := make([]store.Record, 0, len(models))
	for i := range models {
		out = append(out, fromRecordModel(&models[i]))
	}
	return out, nil
}

// Count returns the number of records inside r.
func (s *Store) Count(ctx context.Context, table string, r store.Range) (int, error) {
	if table == "" {
		return 0, store.ErrNoTable
	}

	q := s.db.NewSelect().
		Model((*recordModel)(nil)).
		Where("tbl = ?", table)
	q = applyRange(q, r)

	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("jsstore/sqlite: count %s: %w", table, err)
	}
	return n, nil
}

// ApplyBatch applies all mutations inside a single transaction.
func (s *Store) ApplyBatch(ctx context.Context, muts []store.Mutation) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, mut := range muts {
			if mut.Table == "" {
				return store.ErrNoTable
			}
			switch mut.Kind {
			case store.MutationPut:
				if err := s.put(ctx, tx, mut.Table, mut.Record, mut.Overwrite); err != nil {
					return err
				}
			case store.MutationDelete:
				if _, err := tx.NewDelete().
					Model((*recordModel)(nil)).
					Where("tbl = ?", mut.Table).
					Where("key = ?", mut.Key).
					Exec(ctx); err != nil {
					return fmt.Errorf("jsstore/sqlite: batch delete %s/%s: %w", mut.Table, mut.Key, err)
				}
			}
		}
		return nil
	})
}

// applyRange adds WHERE clauses for r. Prefix ranges become half-open
// key bounds so the key index stays usable.
func applyRange(q *bun.SelectQuery, r store.Range) *bun.SelectQuery {
	if r.Prefix != "" {
		q = q.Where("key >= ?", r.Prefix)
		if end, ok := prefixUpperBound(r.Prefix); ok {
			q = q.Where("key < ?", end)
		}
		return q
	}
	if r.From != "" {
		q = q.Where("key >= ?", r.From)
	}
	if r.To != "" {
		q = q.Where("key <= ?", r.To)
	}
	return q
}

// prefixUpperBound returns the smallest string greater than every string
// with the given prefix, by incrementing the last non-0xff byte.
func prefixUpperBound(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// isDuplicateKey checks if a SQLite error is a unique constraint violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

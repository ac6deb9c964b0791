package sqlite

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/mirumirumi/JsStore/store"
)

// recordModel is the Bun row shape for persisted records. A single table
// holds every logical table, keyed by (tbl, key).
type recordModel struct {
	bun.BaseModel `bun:"table:jsstore_records"`

	Tbl       string    `bun:"tbl,pk"`
	Key       string    `bun:"key,pk"`
	Value     []byte    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func toRecordModel(table string, rec store.Record) *recordModel {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	return &recordModel{
		Tbl:       table,
		Key:       rec.Key,
		Value:     rec.Value,
		UpdatedAt: updatedAt,
	}
}

func fromRecordModel(m *recordModel) store.Record {
	return store.Record{
		Key:       m.Key,
		Value:     m.Value,
		UpdatedAt: m.UpdatedAt,
	}
}

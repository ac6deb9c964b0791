package jsstore

import "github.com/mirumirumi/JsStore/id"

// ID is the primary identifier type for all JsStore entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

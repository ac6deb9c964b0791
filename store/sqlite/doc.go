// Package sqlite implements store.Store using the Bun ORM with SQLite
// dialect. Suitable for embedded deployments, CLI tools, and standalone
// applications that need the data to survive restarts.
//
// Open a store directly:
//
//	s, err := sqlite.Open("jsstore.db")
//	if err != nil { ... }
//	defer s.Close()
//	s.Migrate(ctx)
//
// Or hand in an existing *bun.DB — in that case the caller owns the db
// lifecycle and sqlite never closes it:
//
//	db := bun.NewDB(sqldb, sqlitedialect.New())
//	s := sqlite.New(db)
package sqlite

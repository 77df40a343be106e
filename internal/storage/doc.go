// Package storage persists documents and their versioned chunk sets in
// SQLite.
//
// Each document is a single row whose version column increments on every
// save; the chunk set is replaced wholesale inside the same transaction, so
// a reader never observes a document text paired with a stale chunk set.
// Versions only ever grow, and concurrent writers resolve by last write
// wins.
//
// The package supports two SQLite drivers selected at build time: the pure
// Go modernc.org/sqlite driver by default, and mattn/go-sqlite3 behind the
// cgo_sqlite build tag. Schema changes are expressed as ordered migrations
// tracked in a schema_version table.
package storage

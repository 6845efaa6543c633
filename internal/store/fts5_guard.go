//go:build !sqlite_fts5

package store

// The FTS5 module in mattn/go-sqlite3 is compiled in only when the
// sqlite_fts5 build tag is set. Without it the schema in sqlite.go fails
// at runtime with "no such module: fts5", so fail the build instead:
//
//	go build -tags sqlite_fts5 ./...
//	go test -tags sqlite_fts5 ./...
var _ = buildRequiresTagSQLiteFTS5

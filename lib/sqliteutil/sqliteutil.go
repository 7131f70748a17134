package sqliteutil

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

// OpenDB opens a sqlite database at the given path (":memory:" works)
// and applies the schema, tolerating already applied schemas.
func OpenDB(schema, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		db.Close()
		return nil, err
	}
	return db, nil
}

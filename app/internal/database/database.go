// Package database holds the optional sqlite activity journal shared by the
// command-line tools. When Init has not been called every write is a no-op.
package database

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is the global journal handle. Nil means the journal is disabled.
var DB *sql.DB

// Init opens (creating if needed) the journal at dbPath and ensures its schema.
func Init(dbPath string) error {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return err
	}

	DB = db
	return EnsureSchema()
}

// Close closes the journal and disables further writes.
func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}

// Enabled reports whether a journal is open.
func Enabled() bool {
	return DB != nil
}

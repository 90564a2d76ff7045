package database

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/surplus/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultPath is where the store lives when nothing else is configured.
const DefaultPath = "database/food_waste.db"

// Open opens the SQLite database at the given path and ensures the schema
// exists. The pool is capped at one connection: every call borrows the same
// connection and returns it, and ":memory:" databases stay a single database.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: create db dir: %w", ErrStorageUnavailable, err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %w", ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping db: %w", ErrStorageUnavailable, err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// EnsureSchema creates the four tables and their indexes if absent. It is
// safe to call repeatedly and never drops or truncates rows.
func EnsureSchema(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return Classify(fmt.Errorf("goose up: %w", err))
	}

	return nil
}

var tableColumns = map[string][]string{
	model.TableProviders:    {"Provider_ID", "Name", "Type", "Address", "City", "Contact"},
	model.TableReceivers:    {"Receiver_ID", "Name", "Type", "City", "Contact"},
	model.TableFoodListings: {"Food_ID", "Food_Name", "Quantity", "Expiry_Date", "Provider_ID", "Provider_Type", "Location", "Food_Type", "Meal_Type"},
	model.TableClaims:       {"Claim_ID", "Food_ID", "Receiver_ID", "Status", "Timestamp"},
}

// TableColumns returns the schema's column set for a domain table, in
// declaration order. ok is false for unknown tables.
func TableColumns(table string) (cols []string, ok bool) {
	cols, ok = tableColumns[table]
	if !ok {
		return nil, false
	}
	return append([]string(nil), cols...), true
}

// IsTable reports whether name is one of the four domain tables.
func IsTable(name string) bool {
	_, ok := tableColumns[name]
	return ok
}

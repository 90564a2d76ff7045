package database

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrStorageUnavailable means the database file could not be opened or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSchemaViolation means a write broke a foreign key, NOT NULL, CHECK or key constraint.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrSourceMissing means a bulk-load input does not exist.
	ErrSourceMissing = errors.New("source missing")
	// ErrQueryFailure means a read statement was malformed or failed while running.
	ErrQueryFailure = errors.New("query failure")
	// ErrNotFound means an update or delete matched no rows.
	ErrNotFound = errors.New("not found")
)

// Classify tags a driver error with the matching sentinel so callers can use
// errors.Is. Errors that already carry a sentinel, and errors that do not come
// from SQLite, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrStorageUnavailable, ErrSchemaViolation, ErrSourceMissing, ErrQueryFailure, ErrNotFound} {
		if errors.Is(err, known) {
			return err
		}
	}

	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return err
	}

	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		return fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_READONLY,
		sqlite3.SQLITE_IOERR, sqlite3.SQLITE_PERM, sqlite3.SQLITE_FULL, sqlite3.SQLITE_CORRUPT:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return err
}

// Package loader bulk-populates the domain tables from tabular sources,
// replacing each table's contents wholesale.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
)

// TableError reports which table a multi-table load stopped at. Tables
// loaded before it keep their new contents.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Table, e.Err)
}

func (e *TableError) Unwrap() error { return e.Err }

// Violation is a row whose foreign key points at a missing parent.
type Violation struct {
	Table  string `json:"table"`
	RowID  int64  `json:"rowid"`
	Parent string `json:"parent"`
}

// Result summarizes a LoadDir run.
type Result struct {
	Rows       map[string]int `json:"rows"`
	Violations []Violation    `json:"violations"`
}

type Loader struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, logger: logger}
}

// SourcePath is where LoadDir expects a table's CSV inside dir.
func SourcePath(dir, table string) string {
	return filepath.Join(dir, table+"_data.csv")
}

// LoadDir loads every table from dir, parents first. It stops at the first
// table that fails and returns a *TableError naming it.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Result, error) {
	res := &Result{Rows: make(map[string]int, len(model.Tables))}
	for _, table := range model.Tables {
		src, err := ReadCSV(SourcePath(dir, table))
		if err != nil {
			l.logger.Error("bulk load failed", "table", table, "error", err)
			return res, &TableError{Table: table, Err: err}
		}
		n, err := l.LoadTable(ctx, table, src)
		if err != nil {
			l.logger.Error("bulk load failed", "table", table, "error", err)
			return res, &TableError{Table: table, Err: err}
		}
		res.Rows[table] = n
	}

	violations, err := l.ForeignKeyCheck(ctx)
	if err != nil {
		return res, err
	}
	res.Violations = violations
	if len(violations) > 0 {
		l.logger.Warn("loaded data has dangling references", "count", len(violations))
	}
	return res, nil
}

// LoadTable replaces the entire contents of table with src. The source
// column set must match the schema exactly, in any order. The replacement is
// a single transaction: on any failure the table keeps its old rows.
func (l *Loader) LoadTable(ctx context.Context, table string, src *Source) (int, error) {
	cols, ok := database.TableColumns(table)
	if !ok {
		return 0, fmt.Errorf("%w: unknown table %q", database.ErrSchemaViolation, table)
	}
	if src == nil {
		return 0, fmt.Errorf("%w: %s: no source", database.ErrSourceMissing, table)
	}
	order, err := columnOrder(cols, src.Columns)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", database.ErrSchemaViolation, table, err)
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("get conn: %w", database.Classify(err))
	}
	defer conn.Close()

	// The pragma is a no-op inside a transaction, so flip it first. Dangling
	// references are reported afterwards by ForeignKeyCheck.
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return 0, fmt.Errorf("relax foreign keys: %w", err)
	}
	defer conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON")

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", database.Classify(err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, database.Classify(err))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", database.Classify(err))
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i, row := range src.Rows {
		if len(row) != len(src.Columns) {
			return 0, fmt.Errorf("%w: %s row %d: %d cells, want %d",
				database.ErrSchemaViolation, table, i+1, len(row), len(src.Columns))
		}
		for j, k := range order {
			args[j] = cell(row[k])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("%s row %d: %w", table, i+1, database.Classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", database.Classify(err))
	}
	l.logger.Info("table loaded", "table", table, "rows", len(src.Rows))
	return len(src.Rows), nil
}

// ForeignKeyCheck lists rows whose references point at missing parents.
func (l *Loader) ForeignKeyCheck(ctx context.Context) ([]Violation, error) {
	rows, err := l.db.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return nil, fmt.Errorf("foreign key check: %w", database.Classify(err))
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var v Violation
		var rowID sql.NullInt64
		var fkid int64
		if err := rows.Scan(&v.Table, &rowID, &v.Parent, &fkid); err != nil {
			return nil, fmt.Errorf("scan foreign key check: %w", err)
		}
		v.RowID = rowID.Int64
		out = append(out, v)
	}
	return out, rows.Err()
}

// columnOrder maps each schema column to its index in the source header.
func columnOrder(schema, header []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; dup {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		pos[h] = i
	}
	order := make([]int, len(schema))
	for i, c := range schema {
		k, ok := pos[c]
		if !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
		order[i] = k
		delete(pos, c)
	}
	for extra := range pos {
		return nil, fmt.Errorf("unexpected column %q", extra)
	}
	return order, nil
}

func cell(s string) any {
	if s == "" {
		return nil
	}
	return s
}

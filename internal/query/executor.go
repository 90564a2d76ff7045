// Package query is the read path: a guarded executor for parameterized
// SELECT statements, a filter builder, and the fixed report catalog.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/metrics"
	"github.com/dukerupert/surplus/internal/model"
)

// Executor runs read-only statements and returns tabular results. Failures
// never escape as panics: the caller gets an empty table and an error
// wrapping database.ErrQueryFailure.
type Executor struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutor(db *sql.DB, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{db: db, logger: logger}
}

// Run executes a single SELECT (or WITH ... SELECT) statement. Args are bound
// positionally to ? placeholders; values are never spliced into sqlText.
func (e *Executor) Run(ctx context.Context, sqlText string, args ...any) (*model.Table, error) {
	return e.run(ctx, "adhoc", sqlText, args)
}

// ReadTable returns every row of one of the four domain tables.
func (e *Executor) ReadTable(ctx context.Context, table string) (*model.Table, error) {
	cols, ok := database.TableColumns(table)
	if !ok {
		return model.NewTable(), fmt.Errorf("%w: unknown table %q", database.ErrQueryFailure, table)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(cols, ", "), table, cols[0])
	return e.run(ctx, "table_"+table, stmt, nil)
}

func (e *Executor) run(ctx context.Context, name, sqlText string, args []any) (t *model.Table, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t = model.NewTable()
			err = fmt.Errorf("%w: %s: panic: %v", database.ErrQueryFailure, name, r)
		}
		metrics.ObserveQuery(name, start, err)
		if err != nil {
			e.logger.Error("query failed", "query", name, "error", err)
		}
	}()

	stmt, err := readOnlyStatement(sqlText)
	if err != nil {
		return model.NewTable(), fmt.Errorf("%w: %s: %w", database.ErrQueryFailure, name, err)
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return model.NewTable(), fmt.Errorf("%w: %s: %w", database.ErrQueryFailure, name, database.Classify(err))
	}
	defer conn.Close()

	// query_only makes SQLite itself refuse writes smuggled inside a CTE.
	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return model.NewTable(), fmt.Errorf("%w: %s: %w", database.ErrQueryFailure, name, err)
	}
	defer conn.ExecContext(context.Background(), "PRAGMA query_only = OFF")

	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return model.NewTable(), fmt.Errorf("%w: %s: %w", database.ErrQueryFailure, name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return model.NewTable(), fmt.Errorf("%w: %s: columns: %w", database.ErrQueryFailure, name, err)
	}

	result := model.NewTable(cols...)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return model.NewTable(cols...), fmt.Errorf("%w: %s: scan: %w", database.ErrQueryFailure, name, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return model.NewTable(cols...), fmt.Errorf("%w: %s: %w", database.ErrQueryFailure, name, err)
	}
	return result, nil
}

var errNotReadOnly = errors.New("only a single SELECT statement is allowed")

// readOnlyStatement returns the first statement in sqlText if it starts with
// SELECT or WITH and nothing but comments or semicolons follows it. Quoted
// text and comments never count as statement boundaries.
func readOnlyStatement(sqlText string) (string, error) {
	end := statementEnd(sqlText)
	stmt := strings.TrimSpace(sqlText[:end])

	for rest := sqlText[end:]; rest != ""; {
		i := skipSpaceAndComments(rest, 0)
		if i == len(rest) {
			break
		}
		if rest[i] != ';' {
			return "", errNotReadOnly
		}
		rest = rest[i+1:]
	}

	i := skipSpaceAndComments(stmt, 0)
	if i == len(stmt) {
		return "", errors.New("empty statement")
	}
	j := i
	for j < len(stmt) && isWordByte(stmt[j]) {
		j++
	}
	switch strings.ToUpper(stmt[i:j]) {
	case "SELECT", "WITH":
		return stmt, nil
	}
	return "", errNotReadOnly
}

// statementEnd returns the index of the first semicolon outside quotes and
// comments, or len(s).
func statementEnd(s string) int {
	i := 0
	for i < len(s) {
		if j := commentEnd(s, i); j > i {
			i = j
			continue
		}
		switch c := s[i]; c {
		case ';':
			return i
		case '\'', '"', '`', '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			// Doubled quotes scan as adjacent literals.
			n := strings.IndexByte(s[i+1:], closer)
			if n < 0 {
				return len(s)
			}
			i += n + 2
			continue
		}
		i++
	}
	return len(s)
}

// commentEnd returns the index just past a comment starting at i, or i when
// none starts there.
func commentEnd(s string, i int) int {
	switch {
	case strings.HasPrefix(s[i:], "--"):
		if n := strings.IndexByte(s[i:], '\n'); n >= 0 {
			return i + n + 1
		}
		return len(s)
	case strings.HasPrefix(s[i:], "/*"):
		if n := strings.Index(s[i+2:], "*/"); n >= 0 {
			return i + 2 + n + 2
		}
		return len(s)
	}
	return i
}

func skipSpaceAndComments(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			i++
			continue
		}
		j := commentEnd(s, i)
		if j == i {
			return i
		}
		i = j
	}
	return i
}

func isWordByte(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

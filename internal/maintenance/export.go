package maintenance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dukerupert/surplus/internal/model"
)

// ExportPath is where ExportAll writes a table inside dir.
func ExportPath(dir, table string) string {
	return filepath.Join(dir, table+"_export.csv")
}

// ExportAll writes each domain table to <table>_export.csv in dir, creating
// dir if needed. It returns the paths written; on failure the list is empty.
func (s *Service) ExportAll(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("export failed", "error", err)
		return []string{}, fmt.Errorf("create export dir: %w", err)
	}

	paths := make([]string, 0, len(model.Tables))
	for _, table := range model.Tables {
		path := ExportPath(dir, table)
		if err := s.exportFile(ctx, table, path); err != nil {
			s.logger.Error("export failed", "table", table, "error", err)
			return []string{}, err
		}
		paths = append(paths, path)
	}
	s.logger.Info("tables exported", "dir", dir, "files", len(paths))
	return paths, nil
}

func (s *Service) exportFile(ctx context.Context, table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := s.ExportTable(ctx, table, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportTable writes one table as CSV with a header row.
func (s *Service) ExportTable(ctx context.Context, table string, w io.Writer) error {
	t, err := s.exec.ReadTable(ctx, table)
	if err != nil {
		return err
	}
	return WriteCSV(w, t)
}

// WriteCSV renders a tabular result as CSV. NULL cells are written empty.
func WriteCSV(w io.Writer, t *model.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) {
				rec[i] = formatCell(row[i])
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

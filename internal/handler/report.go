package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/maintenance"
	"github.com/dukerupert/surplus/internal/model"
	"github.com/dukerupert/surplus/internal/query"
)

// ReportHandler serves the report catalog, the summary counts and raw table
// reads.
type ReportHandler struct {
	reports *query.Reports
	exec    *query.Executor
	logger  *slog.Logger
}

func NewReportHandler(reports *query.Reports, exec *query.Executor, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, exec: exec, logger: logger}
}

func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, query.Catalog())
}

type reportResponse struct {
	Report query.Report `json:"report"`
	*model.Table
}

// Get runs one report. The path value is a report number or slug; the
// contacts report reads ?city=.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, t, ok := h.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Report: rep, Table: t})
}

// CSV runs one report and sends the result as a CSV download.
func (h *ReportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	rep, t, ok := h.run(w, r)
	if !ok {
		return
	}
	writeCSV(w, rep.Slug, t, h.logger)
}

func (h *ReportHandler) run(w http.ResponseWriter, r *http.Request) (query.Report, *model.Table, bool) {
	rep, found := query.BySlug(r.PathValue("id"))
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return rep, nil, false
	}
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if rep.NeedsCity && city == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "city is required"})
		return rep, nil, false
	}

	t, err := h.reports.Run(r.Context(), rep.ID, query.Params{City: city})
	if err != nil {
		writeError(w, err)
		return rep, nil, false
	}
	return rep, t, true
}

func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	t, err := h.reports.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var summary map[string]any
	if recs := t.Records(); len(recs) > 0 {
		summary = recs[0]
	}
	writeJSON(w, http.StatusOK, summary)
}

// Table returns every row of one domain table.
func (h *ReportHandler) Table(w http.ResponseWriter, r *http.Request) {
	t, ok := h.readTable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *ReportHandler) TableCSV(w http.ResponseWriter, r *http.Request) {
	t, ok := h.readTable(w, r)
	if !ok {
		return
	}
	writeCSV(w, r.PathValue("table"), t, h.logger)
}

func (h *ReportHandler) readTable(w http.ResponseWriter, r *http.Request) (*model.Table, bool) {
	table := r.PathValue("table")
	if !database.IsTable(table) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown table"})
		return nil, false
	}
	t, err := h.exec.ReadTable(r.Context(), table)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return t, true
}

func writeCSV(w http.ResponseWriter, name string, t *model.Table, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
	w.WriteHeader(http.StatusOK)
	if err := maintenance.WriteCSV(w, t); err != nil {
		logger.Warn("write csv", "name", name, "error", err)
	}
}

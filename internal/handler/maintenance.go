package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/surplus/internal/backup"
	"github.com/dukerupert/surplus/internal/loader"
	"github.com/dukerupert/surplus/internal/maintenance"
	"github.com/dukerupert/surplus/internal/websocket"
)

type MaintenanceHandler struct {
	svc       *maintenance.Service
	backupMgr *backup.Manager
	loader    *loader.Loader
	dataDir   string
	exportDir string
	notifier
	logger *slog.Logger
}

func NewMaintenanceHandler(svc *maintenance.Service, bm *backup.Manager, ld *loader.Loader, dataDir, exportDir string, hub *websocket.Hub, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		svc:       svc,
		backupMgr: bm,
		loader:    ld,
		dataDir:   dataDir,
		exportDir: exportDir,
		notifier:  notifier{hub},
		logger:    logger,
	}
}

func (h *MaintenanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *MaintenanceHandler) Purge(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Purge(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Listings > 0 {
		h.notify(websocket.EntityListing, websocket.ActionPurged, 0, map[string]any{"count": res.Listings, "claims_removed": res.Claims})
	}
	writeJSON(w, http.StatusOK, res)
}

type backupRequest struct {
	Encrypt bool `json:"encrypt"`
	Upload  bool `json:"upload"`
}

// Backup writes a snapshot into the configured backup directory. An empty
// body takes a plain local copy.
func (h *MaintenanceHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if h.backupMgr == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backups are not configured"})
		return
	}

	var req backupRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}
	if req.Upload && !h.backupMgr.Status().Remote {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "remote storage is not configured"})
		return
	}

	res, err := h.backupMgr.Run(r.Context(), backup.Options{Encrypt: req.Encrypt, Upload: req.Upload})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *MaintenanceHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	if h.backupMgr == nil {
		writeJSON(w, http.StatusOK, backup.Status{State: backup.StateIdle})
		return
	}
	writeJSON(w, http.StatusOK, h.backupMgr.Status())
}

func (h *MaintenanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	paths, err := h.svc.ExportAll(r.Context(), h.exportDir)
	if err != nil {
		writeError(w, err)
		return
	}
	h.notify(websocket.EntityData, websocket.ActionExported, 0, map[string]any{"files": paths})
	writeJSON(w, http.StatusOK, map[string]any{"files": paths})
}

// Load replaces the tables from the CSV files in the data directory.
func (h *MaintenanceHandler) Load(w http.ResponseWriter, r *http.Request) {
	res, err := h.loader.LoadDir(r.Context(), h.dataDir)
	if err != nil {
		var te *loader.TableError
		if errors.As(err, &te) {
			if len(res.Rows) > 0 {
				h.notify(websocket.EntityData, websocket.ActionLoaded, 0, map[string]any{"rows": res.Rows})
			}
			writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "table": te.Table, "rows": res.Rows})
			return
		}
		writeError(w, err)
		return
	}
	h.notify(websocket.EntityData, websocket.ActionLoaded, 0, map[string]any{"rows": res.Rows})
	writeJSON(w, http.StatusOK, res)
}

package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/surplus/internal/backup"
	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/config"
	"github.com/dukerupert/surplus/internal/handler"
	"github.com/dukerupert/surplus/internal/loader"
	"github.com/dukerupert/surplus/internal/maintenance"
	"github.com/dukerupert/surplus/internal/middleware"
	"github.com/dukerupert/surplus/internal/query"
	"github.com/dukerupert/surplus/internal/store"
	ws "github.com/dukerupert/surplus/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	reportH       *handler.ReportHandler
	listingH      *handler.ListingHandler
	claimH        *handler.ClaimHandler
	directoryH    *handler.DirectoryHandler
	maintenanceH  *handler.MaintenanceHandler
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	maintLimit    int
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, clk clock.Clock, logger *slog.Logger) *Server {
	if clk == nil {
		clk = clock.Real{}
	}
	hub := ws.NewHub(logger.With("component", "websocket"))

	providerStore := store.NewProviderStore(db)
	receiverStore := store.NewReceiverStore(db)
	listingStore := store.NewFoodListingStore(db)
	claimStore := store.NewClaimStore(db, clk)

	exec := query.NewExecutor(db, logger.With("component", "query"))
	reports := query.NewReports(exec, clk)
	maint := maintenance.NewService(db, exec, clk, logger.With("component", "maintenance"))
	ld := loader.New(db, logger.With("component", "loader"))

	backupMgr := backup.NewManager(BackupConfig(cfg), db, clk, logger.With("component", "backup"), func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: ws.EntityBackup,
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
				"path":        s.LastPath,
			},
		})
	})

	return &Server{
		db:            db,
		hub:           hub,
		reportH:       handler.NewReportHandler(reports, exec, logger.With("component", "report")),
		listingH:      handler.NewListingHandler(listingStore, providerStore, exec, hub, logger.With("component", "listing")),
		claimH:        handler.NewClaimHandler(claimStore, hub, logger.With("component", "claim")),
		directoryH:    handler.NewDirectoryHandler(providerStore, receiverStore, hub, logger.With("component", "directory")),
		maintenanceH:  handler.NewMaintenanceHandler(maint, backupMgr, ld, cfg.Data.Dir, cfg.Export.Dir, hub, logger.With("component", "maintenance_handler")),
		rateLimiter:   middleware.NewRateLimiter(clk),
		backupManager: backupMgr,
		maintLimit:    cfg.HTTP.MaintenancePerMinute,
		logger:        logger,
	}
}

// BackupConfig converts the file configuration into backup manager settings.
func BackupConfig(cfg *config.Config) backup.Config {
	return backup.Config{
		Dir:           cfg.Backup.Dir,
		RetentionDays: cfg.Backup.RetentionDays,
		Interval:      cfg.Backup.Interval.Duration,
		Passphrase:    cfg.Backup.Passphrase,
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.S3.Endpoint,
			Bucket:    cfg.Backup.S3.Bucket,
			Region:    cfg.Backup.S3.Region,
			AccessKey: cfg.Backup.S3.AccessKey,
			SecretKey: cfg.Backup.S3.SecretKey,
			Prefix:    cfg.Backup.S3.Prefix,
		},
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// Hub returns the change feed hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	s.registerAPIRoutes(mux)

	logger := s.logger.With("component", "http")
	return middleware.RequestLogger(logger)(middleware.Recoverer(logger)(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	if s.maintLimit <= 0 {
		return h
	}
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.maintLimit, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Reports
	mux.HandleFunc("GET /api/reports", s.reportH.List)
	mux.HandleFunc("GET /api/reports/{id}", s.reportH.Get)
	mux.HandleFunc("GET /api/reports/{id}/csv", s.reportH.CSV)
	mux.HandleFunc("GET /api/summary", s.reportH.Summary)

	// Raw tables
	mux.HandleFunc("GET /api/tables/{table}", s.reportH.Table)
	mux.HandleFunc("GET /api/tables/{table}/csv", s.reportH.TableCSV)

	// Food listings
	mux.HandleFunc("GET /api/listings", s.listingH.Filter)
	mux.HandleFunc("GET /api/listings/{id}", s.listingH.Get)
	mux.HandleFunc("POST /api/listings", s.listingH.Create)
	mux.HandleFunc("PATCH /api/listings/{id}", s.listingH.Update)
	mux.HandleFunc("DELETE /api/listings/{id}", s.listingH.Delete)

	// Claims
	mux.HandleFunc("GET /api/claims", s.claimH.List)
	mux.HandleFunc("POST /api/claims", s.claimH.Create)
	mux.HandleFunc("PATCH /api/claims/{id}", s.claimH.UpdateStatus)
	mux.HandleFunc("DELETE /api/claims/{id}", s.claimH.Delete)

	// Providers and receivers
	mux.HandleFunc("GET /api/providers", s.directoryH.ListProviders)
	mux.HandleFunc("POST /api/providers", s.directoryH.CreateProvider)
	mux.HandleFunc("GET /api/receivers", s.directoryH.ListReceivers)
	mux.HandleFunc("POST /api/receivers", s.directoryH.CreateReceiver)
	mux.HandleFunc("GET /api/cities", s.directoryH.Cities)

	// Maintenance
	mux.HandleFunc("GET /api/maintenance/stats", s.maintenanceH.Stats)
	mux.HandleFunc("GET /api/maintenance/backup", s.maintenanceH.BackupStatus)
	mux.HandleFunc("POST /api/maintenance/purge", s.rateLimitedHandler(s.maintenanceH.Purge))
	mux.HandleFunc("POST /api/maintenance/backup", s.rateLimitedHandler(s.maintenanceH.Backup))
	mux.HandleFunc("POST /api/maintenance/export", s.rateLimitedHandler(s.maintenanceH.Export))
	mux.HandleFunc("POST /api/maintenance/load", s.rateLimitedHandler(s.maintenanceH.Load))
}

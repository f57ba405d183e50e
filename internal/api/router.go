package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/coursegen/worldmodel/internal/api/handlers"
	mw "github.com/coursegen/worldmodel/internal/api/middleware"
	"github.com/coursegen/worldmodel/internal/buildconfig"
	"github.com/coursegen/worldmodel/internal/config"
	"github.com/coursegen/worldmodel/internal/domain"
	"github.com/coursegen/worldmodel/internal/service"
	"github.com/coursegen/worldmodel/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and wired services.
type App struct {
	Router  *chi.Mux
	Network *service.BeliefNetwork

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	claimStore := store.NewClaimStore(db, config.DedupWindow())
	subjectStore := store.NewSubjectStore(db)

	// The belief network gets its clock and registry lookup injected; the
	// host registry here is the subject store itself.
	network := service.NewBeliefNetwork(claimStore, subjectStore, domain.SystemClock{}, service.NetworkConfig{
		Policy:                 config.ResolutionPolicy(),
		HalfLife:               config.HalfLife(),
		ConfidenceFloor:        config.ConfidenceFloor(),
		MergeTopK:              config.MergeTopK(),
		NegationTokenThreshold: config.NegationTokenThreshold(),
		Antonyms:               config.AntonymPairs(),
		Strict:                 config.StrictConfidence(),
	}, logger)

	// Handlers
	claimHandler := handlers.NewClaimHandler(network)
	subjectHandler := handlers.NewSubjectHandler(subjectStore, network)
	maintenanceHandler := handlers.NewMaintenanceHandler(network)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Network:   network,
		startTime: time.Now(),
	}

	counters := mw.NewCounters(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(counters.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/claims", func(r chi.Router) {
			r.Post("/", claimHandler.Create)
			r.Get("/high-confidence", claimHandler.HighConfidence)
			r.Get("/controversial", claimHandler.Controversial)
		})

		r.Route("/subjects", func(r chi.Router) {
			r.Post("/", subjectHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", subjectHandler.GetByID)
				r.Get("/belief", subjectHandler.Belief)
				r.Get("/explain", subjectHandler.Explain)
			})
		})

		r.Route("/maintenance", func(r chi.Router) {
			r.Post("/recompute", maintenanceHandler.Recompute)
		})

		r.Get("/export", maintenanceHandler.Export)
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"version":    buildconfig.Version(),
			"commit":     buildconfig.Commit(),
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Compile-time interface checks.
var (
	_ domain.ClaimStore      = (*store.ClaimStore)(nil)
	_ domain.SubjectStore    = (*store.SubjectStore)(nil)
	_ domain.SubjectRegistry = (*store.SubjectStore)(nil)
)

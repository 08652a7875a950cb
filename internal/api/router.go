package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/doxalabs/doxa/internal/api/handlers"
	mw "github.com/doxalabs/doxa/internal/api/middleware"
	"github.com/doxalabs/doxa/internal/buildconfig"
	"github.com/doxalabs/doxa/internal/config"
	"github.com/doxalabs/doxa/internal/domain"
	"github.com/doxalabs/doxa/internal/service"
	"github.com/doxalabs/doxa/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router  *chi.Mux
	Manager *service.GraphManager
	Flusher *service.FlushService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	tenantStore := store.NewTenantStore(db)
	beliefStore := store.NewBeliefStore(db)
	eventStore := store.NewEventStore(db)

	// Services
	manager := service.NewGraphManager(beliefStore, config.GraphCacheCapacity(), logger)
	learningSvc := service.NewLearningService(logger)
	learningSvc.SetEventStore(eventStore)
	autonomySvc := service.NewAutonomyService(logger)
	flushSvc := service.NewFlushService(manager, logger)
	flushSvc.SetInterval(config.FlushInterval())

	// Handlers
	tenantHandler := handlers.NewTenantHandler(tenantStore)
	beliefHandler := handlers.NewBeliefHandler(manager)
	learningHandler := handlers.NewLearningHandler(manager, learningSvc, eventStore)
	autonomyHandler := handlers.NewAutonomyHandler(manager, autonomySvc)
	graphHandler := handlers.NewGraphHandler(manager)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Manager:   manager,
		Flusher:   flushSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)                                                 // Generate/extract request ID first
	r.Use(middleware.RealIP)                                            // Extract real IP
	r.Use(metricsCollector.Middleware)                                  // Collect metrics
	r.Use(mw.Logging(logger))                                           // Log all requests
	r.Use(middleware.Recoverer)                                         // Recover from panics
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst())) // Rate limiting

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Tenant creation (no auth - bootstrap endpoint)
	r.Post("/v1/tenants", tenantHandler.Create)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(tenantStore))

		r.Route("/beliefs", func(r chi.Router) {
			r.Post("/", beliefHandler.Create)
			r.Get("/", beliefHandler.List)
			r.Post("/activate", autonomyHandler.Activate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", beliefHandler.GetByID)
				r.Post("/supports", beliefHandler.AddSupport)
				r.Post("/outcome", learningHandler.RecordOutcome)
				r.Post("/challenge", learningHandler.Challenge)
				r.Get("/autonomy", autonomyHandler.GetAutonomy)
				r.Get("/events", learningHandler.ListEvents)
			})
		})

		r.Post("/autonomy/aggregate", autonomyHandler.Aggregate)
		r.Get("/graph", graphHandler.Export)
		r.Post("/graph/flush", graphHandler.Flush)
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage no lifecycle.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
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
			"graph_cache":    app.Manager.Stats(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"version":    buildconfig.Version(),
			"commit":     buildconfig.Commit(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy the domain ports at compile time.
var (
	_ domain.TenantStore = (*store.TenantStore)(nil)
	_ domain.BeliefStore = (*store.BeliefStore)(nil)
	_ domain.EventStore  = (*store.EventStore)(nil)
)

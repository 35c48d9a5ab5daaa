package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"github.com/zmang24/si-opportunity-manager/internal/auth"
	"github.com/zmang24/si-opportunity-manager/internal/config"
	"github.com/zmang24/si-opportunity-manager/internal/database"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"github.com/zmang24/si-opportunity-manager/internal/http/handler"
	"github.com/zmang24/si-opportunity-manager/internal/http/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/zmang24/si-opportunity-manager/docs" // Import generated swagger docs
)

type Router struct {
	cfg                 *config.Config
	logger              *zap.Logger
	db                  *gorm.DB
	authMiddleware      *auth.Middleware
	rateLimiter         *middleware.RateLimiter
	ticketHandler       *handler.TicketHandler
	attachmentHandler   *handler.AttachmentHandler
	notificationHandler *handler.NotificationHandler
	eventsHandler       *handler.EventsHandler
	vehicleHandler      *handler.VehicleHandler
	authHandler         *handler.AuthHandler
	blobHandler         *handler.BlobHandler
}

// NewRouter wires the handlers. blobHandler is nil when blobs are served
// by the cloud store directly.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	ticketHandler *handler.TicketHandler,
	attachmentHandler *handler.AttachmentHandler,
	notificationHandler *handler.NotificationHandler,
	eventsHandler *handler.EventsHandler,
	vehicleHandler *handler.VehicleHandler,
	authHandler *handler.AuthHandler,
	blobHandler *handler.BlobHandler,
) *Router {
	return &Router{
		cfg:                 cfg,
		logger:              logger,
		db:                  db,
		authMiddleware:      authMiddleware,
		rateLimiter:         rateLimiter,
		ticketHandler:       ticketHandler,
		attachmentHandler:   attachmentHandler,
		notificationHandler: notificationHandler,
		eventsHandler:       eventsHandler,
		vehicleHandler:      vehicleHandler,
		authHandler:         authHandler,
		blobHandler:         blobHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with pool stats)
	r.Get("/health/db", rt.databaseHealth)

	// Combined readiness check
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]interface{}{}
		status := http.StatusOK
		if err := database.HealthCheck(r.Context(), rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = map[string]interface{}{"status": "healthy"}
		}
		overall := "healthy"
		if status != http.StatusOK {
			overall = "unhealthy"
		}
		writeJSON(w, status, map[string]interface{}{"status": overall, "checks": checks})
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Signed links carry their own authorization
		if rt.blobHandler != nil {
			r.Get("/blobs/{key}", rt.blobHandler.Download)
		}

		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(middleware.TagUser)
			r.Use(rt.rateLimiter.LimitByUser)

			// Long-lived; no request deadline
			r.Get("/events", rt.eventsHandler.Stream)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequestTimeout(rt.cfg.Server.RequestTimeoutDuration()))

				r.Get("/auth/me", rt.authHandler.Me)
				r.Get("/users", rt.authHandler.ListUsers)

				r.Route("/tickets", func(r chi.Router) {
					r.Get("/", rt.ticketHandler.List)
					r.Post("/", rt.ticketHandler.Create)
					r.Get("/{id}", rt.ticketHandler.GetByID)
					r.Delete("/{id}", rt.ticketHandler.Delete)
					r.Post("/{id}/transition", rt.ticketHandler.Transition)
					r.Post("/{id}/comments", rt.ticketHandler.AddComment)
					r.Post("/{id}/reassign", rt.ticketHandler.Reassign)

					r.Post("/{id}/attachments", rt.attachmentHandler.Upload)
					r.Get("/{id}/attachments/{attachmentId}", rt.attachmentHandler.GetByID)
					r.Delete("/{id}/attachments/{attachmentId}", rt.attachmentHandler.Delete)
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", rt.notificationHandler.List)
					r.Get("/count", rt.notificationHandler.GetUnreadCount)
					r.Post("/mark_read", rt.notificationHandler.MarkRead)
				})

				r.Route("/vehicles", func(r chi.Router) {
					r.Get("/", rt.vehicleHandler.List)
					r.Post("/", rt.vehicleHandler.Create)
					r.With(rt.authMiddleware.RequireRole(domain.RoleAdmin)).Put("/{id}", rt.vehicleHandler.Update)
					r.With(rt.authMiddleware.RequireRole(domain.RoleAdmin)).Delete("/{id}", rt.vehicleHandler.Delete)
				})

				r.Get("/adas-systems", rt.vehicleHandler.ListAdasSystems)
			})
		})
	})

	return r
}

func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(r.Context(), rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats": map[string]interface{}{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

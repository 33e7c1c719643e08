package api

import (
	"net/http"

	"github.com/complyport/realtime-service/internal/broadcast"
	"github.com/complyport/realtime-service/internal/notify"
	"github.com/complyport/realtime-service/internal/proxy"
	"github.com/complyport/realtime-service/internal/ratelimit"
	"github.com/complyport/realtime-service/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps holds the collaborators the router wires into handlers. PgStore may
// be nil (audit log disabled).
type Deps struct {
	Dispatcher    *broadcast.Dispatcher
	Notifications *notify.Client
	Proxy         *proxy.Gateway
	Limiter       *ratelimit.Limiter
	PgStore       *store.PostgresStore

	BackendConfigured  bool
	DeliveryConfigured bool
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Use(corsMiddleware)
	r.Use(identityMiddleware)

	// Handlers
	notifHandler := NewNotificationHandler(deps.Notifications)
	eventHandler := NewEventHandler(deps.Dispatcher)
	metricsHandler := NewMetricsHandler(deps.PgStore)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(deps.BackendConfigured, deps.DeliveryConfigured, deps.PgStore != nil))

		r.Route("/notifications", func(r chi.Router) {
			r.Use(rateLimitMiddleware(deps.Limiter))
			r.Get("/", notifHandler.List)
			r.Post("/", notifHandler.List)
			r.Get("/count", notifHandler.Count)
			r.Patch("/{id}/read", notifHandler.MarkRead)
			r.Post("/read-all", notifHandler.MarkAllRead)
		})

		r.Post("/events", eventHandler.Create)

		r.Get("/metrics", metricsHandler.Metrics)
		r.Get("/broadcasts", metricsHandler.Broadcasts)
	})

	// Admin pass-through to the backend
	r.Handle("/api/backend/*", deps.Proxy.Handler("/api/backend"))

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

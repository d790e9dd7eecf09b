package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/mountkeep/internal/logger"
	"github.com/marmos91/mountkeep/pkg/registry"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - POST /api/v1/auth/login - Exchange admin password for a token
//   - GET /api/v1/shares - Registered shares with live status
//   - POST /api/v1/shares - Register a share and mount it
//   - DELETE /api/v1/shares/{id} - Unmount and remove a share
//   - POST /api/v1/mount - User-triggered reconcile
//   - POST /api/v1/unmount - User-triggered unmount
func NewRouter(cfg APIConfig, reg *registry.Registry, engine Engine, jwtService *JWTService) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	h := &handlers{registry: reg, engine: engine}

	// Health route - unauthenticated
	r.Get("/health", h.health)

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.login(cfg, jwtService))

		// Protected routes - require a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth(jwtService))

			r.Route("/shares", func(r chi.Router) {
				r.Get("/", h.listShares)
				r.Post("/", h.createShare)
				r.Delete("/{id}", h.deleteShare)
			})

			r.Post("/mount", h.triggerMount)
			r.Post("/unmount", h.triggerUnmount)
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger is a custom middleware that logs requests using the
// internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

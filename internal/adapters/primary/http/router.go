package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/lorrc/project-hub-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/project-hub-backend/internal/core/ports"
)

// Handlers groups every primary HTTP adapter mounted by NewRouter.
type Handlers struct {
	Auth          *AuthHandler
	Organizations *OrganizationHandler
	Projects      *ProjectHandler
	Tasks         *TaskHandler
	Comments      *CommentHandler
	WebSocket     *WebSocketHandler
	Events        *SSEHandler
	Health        *HealthHandler
}

type RouterOptions struct {
	Tokens             ports.TokenValidator
	CORSAllowedOrigins []string
	CORSMaxAge         int
	// Limiters are optional; nil disables rate limiting.
	GeneralLimiter *mw.RateLimiter
	AuthLimiter    *mw.RateLimiter
	Logger         *slog.Logger
}

// NewRouter builds the chi router for the public API.
func NewRouter(h Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(opts.Logger))
	r.Use(mw.RecoveryLogger(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{mw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           opts.CORSMaxAge,
	}))

	if opts.GeneralLimiter != nil {
		r.Use(opts.GeneralLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	h.Health.RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes with stricter rate limiting
		r.Group(func(r chi.Router) {
			if opts.AuthLimiter != nil {
				r.Use(opts.AuthLimiter.Middleware)
			}
			r.Route("/auth", h.Auth.RegisterPublicRoutes)
		})

		// Streaming routes authenticate inside the handler: browsers cannot
		// set headers on WebSocket or EventSource requests.
		r.Get("/ws", h.WebSocket.ServeHTTP)

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/{orgID}/events", h.Events.ServeHTTP)
			r.Group(func(r chi.Router) {
				r.Use(mw.JWTMiddleware(opts.Tokens))
				h.Organizations.RegisterRoutes(r)
			})
		})

		// Protected REST routes
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(opts.Tokens))
			r.Get("/auth/me", h.Auth.HandleMe)
			r.Route("/projects", h.Projects.RegisterRoutes)
			r.Route("/tasks", h.Tasks.RegisterRoutes)
			r.Route("/comments", h.Comments.RegisterRoutes)
		})
	})

	return r
}

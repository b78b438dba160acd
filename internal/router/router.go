package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-freelance/internal/config"
	"go-freelance/internal/handler"
	"go-freelance/internal/metrics"
	"go-freelance/internal/middleware"
	"go-freelance/internal/model"
	"go-freelance/internal/ratelimit"
	"go-freelance/internal/websocket"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Notification *handler.NotificationHandler
	Admin        *handler.AdminHandler
	Health       *handler.HealthHandler
	Docs         *handler.DocsHandler
	Socket       *websocket.Handler
}

func New(cfg *config.Config, auth *middleware.AuthMiddleware, counters ratelimit.Store, m *metrics.Metrics, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, m)
	identityLimiter := middleware.NewIdentityRateLimiter(counters, cfg.IdentityRateLimit, cfg.IdentityRateWindow, m)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Instrument(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/docs", h.Docs.SwaggerUI)

	// Upgraded connections cannot pass through http.TimeoutHandler.
	r.Get("/ws", h.Socket.ServeWS)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(auth.Optional)
		api.Use(identityLimiter.Handler)

		api.Route("/auth", func(a chi.Router) {
			a.Post("/register", h.Auth.Register)
			a.Post("/login", h.Auth.Login)
			a.Post("/refresh", h.Auth.Refresh)
			a.Post("/forgot-password", h.Auth.ForgotPassword)
			a.Post("/reset-password", h.Auth.ResetPassword)
			a.With(auth.Required).Post("/logout", h.Auth.Logout)
			a.With(auth.Required).Get("/me", h.Auth.Me)
		})

		api.Get("/users/{id}", h.User.Get)

		api.Route("/notifications", func(n chi.Router) {
			n.Use(auth.Required)
			n.Get("/", h.Notification.List)
			n.Patch("/{id}/read", h.Notification.MarkRead)
		})

		api.With(auth.Required, middleware.RequireRoles(model.RoleAdmin), middleware.RequireVerified).
			Post("/admin/tokens/cleanup", h.Admin.CleanupTokens)
	})

	return r
}

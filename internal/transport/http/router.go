package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-marketplace-api/internal/application/otp"
	"github.com/go-marketplace-api/internal/application/upload"
	"github.com/go-marketplace-api/internal/config"
	"github.com/go-marketplace-api/internal/domain"
	jwtinfra "github.com/go-marketplace-api/internal/infrastructure/jwt"
	"github.com/go-marketplace-api/internal/transport/http/handler"
	appmiddleware "github.com/go-marketplace-api/internal/transport/http/middleware"
)

// Sessions signs and verifies session tokens.
type Sessions interface {
	handler.TokenSigner
	Verify(token string) (*jwtinfra.Claims, error)
}

// Deps holds the services and collaborators the router wires into handlers.
type Deps struct {
	OTP      otp.Service
	Uploads  upload.Service
	Sessions Sessions
	// PublicLimiter throttles the unauthenticated OTP endpoints per client IP.
	PublicLimiter appmiddleware.KeyLimiter
	// Probes back GET /v1/health-check/ready, keyed by dependency name.
	Probes map[string]handler.Probe
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	cookie := handler.SessionCookie{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure}
	authMw := appmiddleware.Auth(deps.Sessions, cfg.SessionCookieName)
	publicRL := func(next http.Handler) http.Handler { return next }
	if deps.PublicLimiter != nil {
		publicRL = appmiddleware.RateLimit(deps.PublicLimiter, cfg.TrustProxy)
	}

	healthH := handler.NewHealthHandler(deps.Probes)
	otpH := handler.NewOTPHandler(deps.OTP, deps.Sessions, cookie, cfg.AdminIdentifiers)
	sessionH := handler.NewSessionHandler(cookie)
	uploadH := handler.NewUploadHandler(deps.Uploads)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(publicRL).Post("/otp/request", otpH.Request)
		r.With(publicRL).Post("/otp/verify", otpH.Verify)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			// Sessions carry an email or phone, not a business owner ID, so
			// any signed-in caller may sign or confirm for any ownerId.
			r.Post("/uploads/{bucket}/confirm", uploadH.Confirm)
			r.Post("/uploads/{bucket}/{ownerId}", uploadH.Sign)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Delete("/uploads/{bucket}/{ownerId}", uploadH.DeleteAll)
			})
		})
	})

	return r
}

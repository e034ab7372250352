package api

import (
	"net/http"

	"github.com/dom/tenant-portal/internal/api/handlers"
	"github.com/dom/tenant-portal/internal/api/middleware"
	"github.com/dom/tenant-portal/internal/config"
	"github.com/dom/tenant-portal/internal/logging"
	"github.com/dom/tenant-portal/internal/metrics"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func NewRouter(services *service.Services, cfg *config.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(logging.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	cookie := handlers.CookieConfig{
		Name:   cfg.SessionCookieName,
		TTL:    cfg.SessionTTL,
		Secure: !cfg.IsDevelopment(),
	}
	loginLimiter := middleware.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(services.Auth, services.License, cookie)
	companyHandler := handlers.NewCompanyHandler(services.Auth)
	licenseHandler := handlers.NewLicenseHandler(services.License)
	memberHandler := handlers.NewMemberHandler(services.Member)
	videoHandler := handlers.NewVideoHandler(services.Video, cfg.MaxUploadBytes)
	deviceHandler := handlers.NewDeviceHandler(services.Device)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(services.Auth, cfg.SessionCookieName))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(loginLimiter))
				r.Post("/login", authHandler.Login)
				r.Post("/register-company", authHandler.RegisterCompany)
			})
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Get("/me", authHandler.Me)
				r.Post("/password", authHandler.ChangePassword)
			})
		})

		r.Post("/devices", deviceHandler.Register)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Get("/companies", companyHandler.List)
			r.Post("/companies/select", companyHandler.Select)

			// Company-scoped routes
			r.Route("/company", func(r chi.Router) {
				r.Use(middleware.RequireCompany(services.Auth))

				r.Get("/license", licenseHandler.Current)
				r.Post("/license/activate", licenseHandler.Activate)
				r.Get("/licenses/{id}", licenseHandler.Get)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", memberHandler.List)
					r.Post("/", memberHandler.Add)
					r.Delete("/{userID}", memberHandler.Remove)
				})

				r.Route("/videos", func(r chi.Router) {
					r.Get("/", videoHandler.List)
					r.Post("/", videoHandler.Upload)
					r.Get("/{id}", videoHandler.Get)
					r.Delete("/{id}", videoHandler.Deactivate)
					r.Get("/{id}/url", videoHandler.DownloadURL)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireSuperAdmin)

				r.Post("/licenses", licenseHandler.Issue)
				r.Get("/licenses", licenseHandler.List)
				r.Get("/devices", deviceHandler.List)
				r.Post("/devices/{id}/deactivate", deviceHandler.Deactivate)
			})
		})
	})

	return r
}

package router

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/booking-engine/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/booking-engine/internal/http/middleware"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Availability       *handlers.AvailabilityHandler
	Appointments       *handlers.AppointmentHandler
	AdminDirectory     *handlers.AdminDirectoryHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// RateLimiter throttles tenant API writes per org (optional).
	RateLimiter *httpmiddleware.RateLimiter
	// Ready reports backing store health for /health (optional).
	Ready func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.Ready))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin routes (HMAC JWT, optionally scoped to one org)
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin/orgs/{orgID}", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.Availability != nil {
				admin.Post("/availability/generate", cfg.Availability.Generate)
				admin.Post("/availability/{entityType}/{entityID}/block", cfg.Availability.Block)
				admin.Post("/availability/{entityType}/{entityID}/unblock", cfg.Availability.Unblock)
			}
			if cfg.AdminDirectory != nil {
				admin.Put("/config", cfg.AdminDirectory.PutConfig)
				admin.Put("/staff/{staffID}", cfg.AdminDirectory.PutStaff)
				admin.Put("/resources/{resourceID}", cfg.AdminDirectory.PutResource)
			}
		})
	}

	// Tenant-scoped API routes
	r.Route("/api", func(tenant chi.Router) {
		tenant.Use(requireOrgID)

		if cfg.Availability != nil {
			tenant.Get("/availability/{entityType}/{entityID}", cfg.Availability.GetRange)
			tenant.Get("/slots", cfg.Availability.FindSlots)
		}

		if cfg.Appointments != nil {
			tenant.Route("/appointments", func(appts chi.Router) {
				appts.Get("/", cfg.Appointments.List)
				appts.Get("/{appointmentID}", cfg.Appointments.Get)

				appts.Group(func(writes chi.Router) {
					if cfg.RateLimiter != nil {
						writes.Use(httpmiddleware.TenantRateLimit(cfg.RateLimiter))
					}
					writes.Post("/", cfg.Appointments.Create)
					writes.Patch("/{appointmentID}", cfg.Appointments.Patch)
					writes.Post("/{appointmentID}/cancel", cfg.Appointments.Cancel)
					writes.Post("/{appointmentID}/reschedule", cfg.Appointments.Reschedule)
					writes.Post("/{appointmentID}/confirm", cfg.Appointments.Confirm)
					writes.Post("/{appointmentID}/complete", cfg.Appointments.Complete)
					writes.Post("/{appointmentID}/no-show", cfg.Appointments.NoShow)
				})
			})
		}
	})

	return r
}

func healthHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

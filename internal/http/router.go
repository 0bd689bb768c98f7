// Package httpapi assembles the HTTP surface: public intake and login,
// authenticated workflow routes, admin-only management routes, and the
// operational endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intake/internal/platform/middleware"
	"intake/pkg/platform/httputil"
)

// Registrar mounts a handler's routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes that live outside the auth middleware.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// SelfRegistrar mounts routes any authenticated actor may reach, outside
// the admin group.
type SelfRegistrar interface {
	RegisterSelf(r chi.Router)
}

// HealthChecker reports dependency health for /healthz.
type HealthChecker func() error

// Deps carries everything the router mounts.
type Deps struct {
	Logger     *slog.Logger
	Validator  middleware.TokenValidator
	Revocation middleware.RevocationChecker

	Applicants interface {
		Registrar
		PublicRegistrar
	}
	Auth interface {
		Registrar
		PublicRegistrar
	}
	Staff interface {
		Registrar
		SelfRegistrar
	}
	Audit Registrar

	Health HealthChecker
}

// New builds the router. Request ID, recovery, and logging wrap everything;
// the auth middleware wraps the staff-facing routes; RequireAdmin
// additionally wraps management routes.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))

	// Unauthenticated surface.
	d.Applicants.RegisterPublic(r)
	d.Auth.RegisterPublic(r)

	// Authenticated surface. Record-level authorization happens in the
	// services; this layer only establishes identity.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Validator, d.Revocation, d.Logger))
		d.Applicants.Register(r)
		d.Auth.Register(r)
		d.Staff.RegisterSelf(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(d.Logger))
			d.Staff.Register(r)
			d.Audit.Register(r)
		})
	})

	r.Get("/healthz", handleHealth(d.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func handleHealth(check HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Package httptransport assembles the full HTTP surface: public auth and
// health endpoints, the authenticated registry API, and Prometheus metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "kinregistry/internal/auth/handler"
	"kinregistry/internal/platform/device"
	"kinregistry/internal/platform/middleware"
	registryhandler "kinregistry/internal/registry/handler"
)

// Deps carries everything the router needs; main builds one and hands it over.
type Deps struct {
	Logger     *slog.Logger
	Auth       *authhandler.Handler
	Registry   *registryhandler.Handler
	Validator  middleware.TokenValidator
	Revocation middleware.RevocationChecker
	Health     func(r chi.Router)
}

// NewRouter wires middlewares and mounts all endpoint groups.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(device.Middleware)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Public surface: token bootstrap, revocation, liveness, metrics.
	d.Auth.Register(r)
	if d.Health != nil {
		d.Health(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Everything else requires a valid, unrevoked bearer token.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Validator, d.Revocation, d.Logger))
		d.Registry.Register(r)
	})

	return r
}

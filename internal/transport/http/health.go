package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kinregistry/pkg/platform/httputil"
)

// Checker is a named dependency health probe.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthRoutes returns a registration func for GET /healthz. With no checkers
// the endpoint reports liveness only.
func HealthRoutes(checkers ...Checker) func(r chi.Router) {
	return func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			status := http.StatusOK
			deps := make(map[string]string, len(checkers))
			for _, c := range checkers {
				if err := c.Check(ctx); err != nil {
					deps[c.Name] = "down"
					status = http.StatusServiceUnavailable
					continue
				}
				deps[c.Name] = "up"
			}

			body := map[string]any{"status": "ok"}
			if status != http.StatusOK {
				body["status"] = "degraded"
			}
			if len(deps) > 0 {
				body["dependencies"] = deps
			}
			httputil.WriteJSON(w, status, body)
		})
	}
}

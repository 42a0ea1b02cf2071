package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pagehost/pagehost/internal/observability"
)

// Metrics records request counts and latency on the given telemetry.
// Requests to /metrics itself are not counted.
//
// The path label uses the chi route pattern (e.g. "/*") rather than the
// raw path, so page keys don't explode label cardinality.
func Metrics(tel *observability.Telemetry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tel == nil || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// Handler wrote nothing; net/http sends 200 in that case.
				status = http.StatusOK
			}

			path := routePattern(r)
			tel.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			tel.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern returns the matched chi route pattern, falling back to the
// raw path for unmatched requests. The pattern is only known after routing,
// so this must run after next.ServeHTTP.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-freelance/internal/metrics"
)

// Instrument counts requests by chi route pattern so path parameters do not
// explode label cardinality.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.Request(r.Method, route, wrapped.status)
		})
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"

	preflightMaxAge = 3600
)

// CORS lets browsers read the request id and rate-limit headers. Bearer
// tokens travel in Authorization, so cookies are never allowed. An empty
// list or a "*" entry allows every origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := corsOrigins(origins)

	return cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{
			requestIDHeader,
			headerRateLimitLimit,
			headerRateLimitRemaining,
			headerRateLimitReset,
			headerRetryAfter,
		},
		MaxAge:           preflightMaxAge,
		AllowCredentials: false,
	}).Handler
}

func corsOrigins(origins []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}
		}
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

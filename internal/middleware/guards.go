package middleware

import (
	"net/http"

	"go-freelance/internal/model"
)

func RequireRoles(allowed ...model.Role) func(http.Handler) http.Handler {
	roleSet := make(map[model.Role]struct{}, len(allowed))
	for _, role := range allowed {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if _, exists := roleSet[identity.Role]; !exists {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		if !identity.IsVerified {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Email verification required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// OwnershipPredicate decides whether identity owns resource. Every endpoint
// that serves owned resources declares its own.
type OwnershipPredicate[R any] func(identity model.Identity, resource R) bool

// CanAccess grants admins everything and everyone else what owns allows.
func CanAccess[R any](identity model.Identity, resource R, owns OwnershipPredicate[R]) bool {
	if identity.Role == model.RoleAdmin {
		return true
	}
	if owns == nil {
		return false
	}
	return owns(identity, resource)
}

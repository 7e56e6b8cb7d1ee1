package middleware

import (
	"log/slog"
	"net/http"
)

// RequireRole admits sessions whose role is one of allowed, e.g. domain.RoleAdmin.
// It must run after Auth.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	roles := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		roles[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "unauthorized")
				return
			}
			if _, ok := roles[claims.Role]; !ok {
				slog.Warn("role denied", "subject", claims.Subject, "role", claims.Role, "path", r.URL.Path)
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

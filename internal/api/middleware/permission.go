package middleware

import (
	"net/http"

	"github.com/ledgerline/ledgerline/internal/authz"
)

// RequirePermission gates a route on one permission string. Denial is a 403;
// the engine's fail-closed contract means storage trouble also denies.
func RequirePermission(engine authz.Authorizer, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			orgID := GetOrganizationID(r.Context())

			if !engine.Can(r.Context(), userID, orgID, permission) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission gates a route on at least one of the permissions.
func RequireAnyPermission(engine authz.Authorizer, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			orgID := GetOrganizationID(r.Context())

			if !engine.CanAny(r.Context(), userID, orgID, permissions) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// RequireRole lets through only actors whose role is listed. An empty list
// allows every authenticated actor.
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(allowedRoles) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			for _, allowedRole := range allowedRoles {
				if role == allowedRole {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("User role not authorized",
				zap.String("role", role),
				zap.Strings("allowed_roles", allowedRoles),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

package middleware

import (
	"net/http"

	"xingqu-shop/internal/apperror"

	"go.uber.org/zap"
)

// RequireAdmin only lets administrators through
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{RoleAdmin}, logger)
}

// RequireRole ensures the caller has one of the allowed roles
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := CurrentRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithAppError(w, apperror.New(apperror.CodeUnauthorized, "authentication required"), logger)
				return
			}

			for _, allowed := range allowedRoles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("User role not authorized",
				zap.String("role", role),
				zap.Strings("allowed_roles", allowedRoles),
				zap.String("path", r.URL.Path),
			)
			RespondWithAppError(w, apperror.New(apperror.CodeForbidden, "insufficient permissions"), logger)
		})
	}
}

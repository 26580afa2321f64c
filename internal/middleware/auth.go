package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"xingqu-shop/internal/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Claims are the token claims minted by the identity provider
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and puts the caller's id and role in
// the request context. Tokens are issued elsewhere; this API only verifies them.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithAppError(w, apperror.New(apperror.CodeUnauthorized, "missing authorization header"), logger)
				return
			}

			// Check Bearer token format
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithAppError(w, apperror.New(apperror.CodeUnauthorized, "invalid authorization header format"), logger)
				return
			}

			// Parse and validate token
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				// Validate signing method
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.Debug("Token validation failed", zap.Error(err))
				message := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					message = "token expired"
				}
				RespondWithAppError(w, apperror.New(apperror.CodeUnauthorized, message), logger)
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil || claims.Role == "" {
				logger.Warn("Token carries malformed claims",
					zap.String("user_id", claims.UserID),
					zap.String("role", claims.Role),
				)
				RespondWithAppError(w, apperror.New(apperror.CodeUnauthorized, "invalid token claims"), logger)
				return
			}

			// Add user information to context
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUserID extracts the authenticated user's id from the context
func CurrentUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// CurrentRole extracts the authenticated user's role from the context
func CurrentRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}

// WithUser returns a context carrying an authenticated identity
func WithUser(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}

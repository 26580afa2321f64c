package transport

import (
	"net/http"
	"strconv"

	"xingqu-shop/internal/apperror"
	"xingqu-shop/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// adminOnly chains authentication and the admin role check
func adminOnly(authMiddleware func(http.Handler) http.Handler, logger *zap.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{authMiddleware, middleware.RequireAdmin(logger)}
}

// decode reads and validates a JSON body, writing the error response itself.
// It reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, v interface{}, logger *zap.Logger) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithAppError(w, apperror.New(apperror.CodeValidation, "invalid request body"), logger)
		return false
	}
	return true
}

// pathID parses a UUID URL parameter, writing a 400 when malformed
func pathID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithAppError(w, apperror.New(apperror.CodeValidation, "invalid "+name), logger)
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the authenticated caller, writing a 401 when absent
func currentUser(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	userID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		middleware.RespondWithAppError(w, apperror.New(apperror.CodeUnauthorized, "authentication required"), logger)
		return uuid.Nil, false
	}
	return userID, true
}

// queryInt reads an integer query parameter, returning 0 when absent or malformed
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

// queryUUID reads an optional UUID query parameter
func queryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeValidation, "invalid "+name)
	}
	return &id, nil
}

// messageResponse is the body of operations without a resource to return
type messageResponse struct {
	Message string `json:"message"`
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"xingqu-shop/internal/apperror"

	"go.uber.org/zap"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError writes err as an error envelope. Unclassified errors are
// reported as internal errors and their text is not exposed.
func RespondWithError(w http.ResponseWriter, err error, logger *zap.Logger) {
	appErr := apperror.As(err)
	if appErr == nil {
		appErr = apperror.Wrap(apperror.CodeInternal, err, "internal server error")
	}
	RespondWithAppError(w, appErr, logger)
}

// RespondWithAppError writes a classified error with the status of its code
func RespondWithAppError(w http.ResponseWriter, appErr *apperror.Error, logger *zap.Logger) {
	status := apperror.HTTPStatus(appErr.Code())
	message := appErr.Message()
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error("Request failed", zap.Error(errors.Unwrap(appErr)), zap.String("message", message))
		}
		message = "internal server error"
	}
	writeError(w, status, string(appErr.Code()), message, appErr.Details())
}

// RespondWithStatus writes an error envelope for a bare HTTP status such as 429
func RespondWithStatus(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, code, message, nil)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	json.NewEncoder(w).Encode(response)
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errs []ValidationError) {
	details := map[string]interface{}{"validation_errors": errs}
	writeError(w, http.StatusBadRequest, string(apperror.CodeValidation), "validation failed", details)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithStatus(w, http.StatusInternalServerError, string(apperror.CodeInternal), "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"xingqu-shop/internal/apperror"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	IdempotentReplayHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 128
)

type idempotencyState string

const (
	idempotencyInFlight  idempotencyState = "in_flight"
	idempotencyCompleted idempotencyState = "completed"
)

// idempotencyRecord is what is kept in Redis per key
type idempotencyRecord struct {
	State       idempotencyState `json:"state"`
	RequestHash string           `json:"request_hash"`
	Status      int              `json:"status,omitempty"`
	ContentType string           `json:"content_type,omitempty"`
	Body        []byte           `json:"body,omitempty"`
}

// IdempotencyConfig holds idempotency configuration
type IdempotencyConfig struct {
	TTL       time.Duration
	KeyPrefix string
}

// Idempotency replays the stored response when a request is retried with the
// same Idempotency-Key and body. Reusing a key with a different body, or while
// the first request is still running, is a conflict. Requests without the
// header, and all requests when Redis is not configured, pass through.
func Idempotency(redisClient *redis.Client, config IdempotencyConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if redisClient == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				RespondWithAppError(w, apperror.New(apperror.CodeValidation, "idempotency key is too long"), logger)
				return
			}

			// Buffer body so it can be hashed and replayed to the handler
			body, err := io.ReadAll(r.Body)
			if err != nil {
				RespondWithAppError(w, apperror.New(apperror.CodeValidation, "failed to read request body"), logger)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			// Keys are scoped to the caller
			owner := r.RemoteAddr
			if userID, ok := CurrentUserID(r.Context()); ok {
				owner = userID.String()
			}
			redisKey := fmt.Sprintf("%s:%s:%s", config.KeyPrefix, owner, key)
			hash := requestHash(r, body)
			ctx := r.Context()

			// Claim the key
			pending, _ := json.Marshal(idempotencyRecord{State: idempotencyInFlight, RequestHash: hash})
			acquired, err := redisClient.SetNX(ctx, redisKey, pending, config.TTL).Result()
			if err != nil {
				logger.Error("Idempotency store unavailable", zap.Error(err), zap.String("key", redisKey))
				next.ServeHTTP(w, r)
				return
			}

			// Someone already holds it: replay or reject
			if !acquired {
				replayStored(w, redisClient, r, redisKey, hash, logger)
				return
			}

			// Release the key if the handler panics so a retry is not locked out
			defer func() {
				if p := recover(); p != nil {
					releaseIdempotencyKey(ctx, redisClient, redisKey, logger)
					panic(p)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// server errors are not cached so the client may retry
			if rec.status >= http.StatusInternalServerError {
				releaseIdempotencyKey(ctx, redisClient, redisKey, logger)
				return
			}

			// Store response for replay
			done, _ := json.Marshal(idempotencyRecord{
				State:       idempotencyCompleted,
				RequestHash: hash,
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err := redisClient.Set(ctx, redisKey, done, config.TTL).Err(); err != nil {
				logger.Warn("Failed to store idempotent response", zap.Error(err), zap.String("key", redisKey))
			}
		})
	}
}

func releaseIdempotencyKey(ctx context.Context, redisClient *redis.Client, redisKey string, logger *zap.Logger) {
	if err := redisClient.Del(context.WithoutCancel(ctx), redisKey).Err(); err != nil {
		logger.Warn("Failed to release idempotency key", zap.Error(err), zap.String("key", redisKey))
	}
}

func replayStored(w http.ResponseWriter, redisClient *redis.Client, r *http.Request, redisKey, hash string, logger *zap.Logger) {
	raw, err := redisClient.Get(r.Context(), redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			RespondWithAppError(w, apperror.New(apperror.CodeStateConflict, "request with this idempotency key is in progress"), logger)
			return
		}
		RespondWithError(w, err, logger)
		return
	}

	var stored idempotencyRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		RespondWithError(w, err, logger)
		return
	}

	if stored.RequestHash != hash {
		RespondWithAppError(w, apperror.New(apperror.CodeConflict, "idempotency key was used with a different request"), logger)
		return
	}
	if stored.State != idempotencyCompleted {
		RespondWithAppError(w, apperror.New(apperror.CodeStateConflict, "request with this idempotency key is in progress"), logger)
		return
	}

	logger.Debug("Replaying idempotent response", zap.String("key", redisKey), zap.Int("status", stored.Status))
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(stored.Status)
	w.Write(stored.Body)
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// responseRecorder tees the response so it can be stored
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"foodcoop/internal/core/apperror"
	appctx "foodcoop/internal/core/context"
	"foodcoop/internal/infrastructure/storage/postgres"
	"foodcoop/pkg/logger"
)

const HeaderIdempotencyKey = "Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// IdempotencyStore keeps request keys and the responses to replay.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key, userID string, statusCode int, contentType string, body []byte) error
	ReleaseKey(ctx context.Context, key, userID string) error
}

// capturingWriter tees the response body so it can be stored for replay.
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response of a mutating request that carries
// an already completed Idempotency-Key. Server errors release the key so the
// client may retry.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		// The path carries the order id, so it is part of the operation.
		operation := c.Request.Method + " " + c.Request.URL.Path

		userID := appctx.GetUserID(ctx)
		replay, err := store.AcquireKey(ctx, key, userID, operation, requestHash)
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// Error responses are rendered by ErrorHandler after this returns; only
		// responses written by handlers are stored.
		status := w.Status()
		if !w.Written() || status >= http.StatusInternalServerError {
			if err := store.ReleaseKey(context.WithoutCancel(ctx), key, userID); err != nil {
				logger.Warn(ctx, "release idempotency key failed", "key", key, "error", err)
			}
			return
		}
		if err := store.CompleteKey(context.WithoutCancel(ctx), key, userID, status, w.Header().Get("Content-Type"), w.body.Bytes()); err != nil {
			logger.Warn(ctx, "complete idempotency key failed", "key", key, "error", err)
		}
	}
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger/internal/core/apperror"
	appctx "ledger/internal/core/context"
	"ledger/internal/infrastructure/storage/postgres"
	"ledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}

			body := gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
			settleIdempotency(c, appErr.HTTPStatus, body)
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		logger.Error(c.Request.Context(), "unhandled error",
			"error", err,
		)

		body := gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": appctx.GetRequestID(c.Request.Context()),
			},
		}
		settleIdempotency(c, http.StatusInternalServerError, body)
		c.JSON(http.StatusInternalServerError, body)
	}
}

// settleIdempotency stores a client error under the request's idempotency
// key so a retry gets the same answer. Server errors release the key instead:
// the retry deserves a second chance.
func settleIdempotency(c *gin.Context, status int, body gin.H) {
	key, exists := c.Get("idempotency_key")
	if !exists {
		return
	}
	store, ok := c.Get("idempotency_store")
	if !ok {
		return
	}
	s, ok := store.(*postgres.IdempotencyStore)
	if !ok || s == nil {
		return
	}

	ctx := c.Request.Context()
	var err error
	if status >= http.StatusInternalServerError {
		err = s.ReleaseKey(ctx, key.(string))
	} else {
		err = s.FailKey(ctx, key.(string), status, "application/json", body)
	}
	if err != nil {
		logger.Warn(ctx, "settle idempotency key failed", "key", key, "error", err)
	}
}

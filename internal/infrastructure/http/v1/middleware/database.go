package middleware

import (
	"github.com/gin-gonic/gin"

	"ledger/internal/infrastructure/storage/postgres"
)

// Database injects the TxManager into the request context, where
// repositories pick it up. It must run before any handler touching the
// database.
func Database(txManager *postgres.TxManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := postgres.WithTxManager(c.Request.Context(), txManager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

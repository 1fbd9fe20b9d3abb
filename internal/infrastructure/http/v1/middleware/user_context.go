package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "ledger/internal/core/context"
)

// Headers set by the fronting gateway once it authenticated the caller.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRoles = "X-User-Roles"
)

// UserContext reads the caller asserted by the gateway and adds it to the
// request context. The ledger trusts these headers; it must not be exposed
// without the gateway in front.
//
// Roles are comma separated, e.g. "accountant,account_adviser". The adviser
// role lets the engine post up to the fiscal year lock date.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.Next()
			return
		}

		user := &appctx.UserContext{
			UserID:    userID,
			Email:     c.GetHeader(HeaderUserEmail),
			Roles:     parseRoles(c.GetHeader(HeaderUserRoles)),
			SessionID: c.GetString("request_id"),
		}
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Set("user_id", userID)

		c.Next()
	}
}

func parseRoles(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}

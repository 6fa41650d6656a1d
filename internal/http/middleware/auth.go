// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file extracts the caller identity. Authentication itself happens
// upstream (gateway or session layer); by the time a request reaches this
// service the verified principal travels in the X-User-ID header, and the
// idempotency scope is (that identity, key).
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the authenticated principal set by the upstream
// authentication layer.
const HeaderUserID = "X-User-ID"

// ctxKeyUserID is the Gin context key holding the caller identity.
const ctxKeyUserID = "userID"

// UserID returns the caller identity stashed by CallerIdentity, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// CallerIdentity stashes the X-User-ID header value in the context for
// logging, rate limiting, and idempotency scoping. It does not reject
// anonymous requests; RequireUser does that for protected routes.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
			c.Set(ctxKeyUserID, uid)
		}
		c.Next()
	}
}

// RequireUser rejects requests that carry no caller identity with 401.
// Mount on admin routes; public signup stays open.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing caller identity",
			})
			return
		}
		c.Next()
	}
}

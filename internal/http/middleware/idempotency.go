// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements transport-level support for the Idempotency-Key
// request header. The middleware validates the header with the same rules the
// domain enforces, stashes the parsed key in the request context, and can
// optionally consult a lookup to flag requests that will replay a previously
// saved response. Downstream rate limiting exempts flagged requests, so a
// client retrying per protocol is never throttled into giving up.
//
// Persistence stays out of here: the coordinator in the services layer owns
// claims and saved responses. The middleware only validates and annotates.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postroom/newsletter-backend/internal/domain"
)

// HeaderIdempotencyKey is the request header clients use to convey an
// idempotency key for unsafe operations. The value must be stable across
// retries of the same logical command.
const HeaderIdempotencyKey = "Idempotency-Key"

// Context keys used internally to stash idempotency state.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// IdempotencyKeyFrom returns the validated key stashed by IdempotencyKeys.
// The second return value reports presence.
func IdempotencyKeyFrom(c *gin.Context) (domain.IdempotencyKey, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return domain.IdempotencyKey{}, false
	}
	k, ok := v.(domain.IdempotencyKey)
	return k, ok && !k.IsZero()
}

// IsReplay reports whether the middleware detected that this request would
// replay an already-saved response.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ReplayLookup answers whether a saved response exists for (userID, key).
// Lookup failures must not block normal processing; return an error only for
// diagnostics.
type ReplayLookup func(ctx context.Context, userID, key string) (bool, error)

// IdempotencyKeys validates the Idempotency-Key header when present, stashes
// the parsed key, and optionally marks known replays for rate-limit bypass.
//
// Behavior:
//   - Header absent: no-op; handlers that require a key reject the request
//     themselves.
//   - Header invalid: 400 with the standard error envelope.
//   - Lookup reports a replay: the context is flagged so the rate limiter
//     skips the request and handlers may short-circuit.
func IdempotencyKeys(lookup ReplayLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderIdempotencyKey)
		if raw == "" {
			c.Next()
			return
		}

		key, err := domain.ParseIdempotencyKey(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := ""
			if v, ok := c.Get("userID"); ok {
				uid, _ = v.(string)
			}
			if exists, _ := lookup(c.Request.Context(), uid, key.String()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

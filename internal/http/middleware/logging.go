// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation-id injector, the structured access
// logger, and the panic recovery handler. Recommended order:
//
//  1. RequestID(): every later log line carries the correlation id
//  2. Logger():    structured access logs + request-scoped logger
//  3. Recovery():  panics become JSON 500s that still carry the id
//
// Subscriber email addresses can appear in query strings (the confirmation
// link) and are masked before logging.
package middleware

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 1024
)

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused; otherwise a fresh UUIDv4 is generated.
// The ID is echoed in the response header and stored in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one structured access log line per request and stashes a
// request-scoped zerolog.Logger under the "logger" context key for handlers
// and services to enrich. Level follows the outcome: error for 5xx, warn for
// 4xx, info otherwise. Query strings are masked (token/email values) and
// truncated before logging.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")
		path := c.FullPath()
		if path == "" {
			// Route not matched (404 and friends).
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(maskQuery(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set("logger", &l)

		c.Next()

		ev := eventForStatus(&l, c.Writer.Status(), len(c.Errors) > 0)
		ev.Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Msg("http request")
	}
}

// Recovery converts panics into JSON 500 responses that keep the correlation
// ID, and logs the stack trace.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				rid, _ := c.Get(requestIDKey)
				log.Error().
					Str("request_id", asString(rid)).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"request_id": asString(rid),
					"code":       "internal_error",
					"message":    "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// LoggerFrom retrieves the request-scoped logger injected by Logger(), or the
// global logger when called outside a request.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*zerolog.Logger); ok {
			return l
		}
	}
	return &log.Logger
}

// maskedQueryParams lists query parameters whose values never go to the log:
// confirmation tokens are credentials, emails are PII.
var maskedQueryParams = map[string]struct{}{
	"token": {},
	"email": {},
}

// maskQuery replaces sensitive query parameter values with "***", keeping the
// parameter names visible for debugging.
func maskQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return ""
	}
	changed := false
	for name := range values {
		if _, masked := maskedQueryParams[strings.ToLower(name)]; masked {
			values[name] = []string{"***"}
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}

func eventForStatus(l *zerolog.Logger, status int, hasErrors bool) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError || hasErrors:
		return l.Error()
	case status >= http.StatusBadRequest:
		return l.Warn()
	default:
		return l.Info()
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

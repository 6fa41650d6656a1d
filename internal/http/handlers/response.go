// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities shared by all endpoints:
// the structured error envelope, the fail()/ok() helpers, and pagination
// metadata. Every error response carries a stable `code` plus the request's
// correlation id so client reports can be matched to server logs.
//
// Example error response:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "publish_in_progress",
//	  "message": "another submission with this idempotency key is processing"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postroom/newsletter-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"publish_in_progress"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"another submission with this idempotency key is processing"`
}

// Pagination is the page metadata attached to list responses.
type Pagination struct {
	Page       int   `json:"page" example:"1"`
	PageSize   int   `json:"page_size" example:"20"`
	Total      int64 `json:"total" example:"42"`
	TotalPages int   `json:"total_pages" example:"3"`
	HasNext    bool  `json:"has_next" example:"true"`
}

// fail aborts the request with a structured error. Server-side errors (>=500)
// are logged with the request-scoped logger before the envelope is written.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail(), for router-level fallbacks
// (NoRoute/NoMethod) that live outside this package's handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

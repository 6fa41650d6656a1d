// Newsletter HTTP handlers.
//
// This file exposes the admin endpoints for newsletter issues:
//   - POST /admin/newsletters  (publish an issue, idempotent)
//   - GET  /admin/newsletters  (list published issues, paginated)
//
// Handlers are transport-thin: they validate and normalize inputs, delegate
// to the publish service, and translate service errors into the standard
// envelope.
//
// Idempotency:
// The Idempotency-Key header is REQUIRED on publish. Repeating a request with
// the same key replays the originally saved response verbatim (status,
// headers, and body) with `Idempotency-Replayed: true` added, and performs
// no side effects. A concurrent duplicate that cannot be replayed yet gets
// 409 publish_in_progress and should be resubmitted unchanged.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postroom/newsletter-backend/internal/domain"
	"github.com/postroom/newsletter-backend/internal/http/middleware"
	"github.com/postroom/newsletter-backend/internal/services"
	"github.com/postroom/newsletter-backend/internal/utils"
)

// PublishNewsletterRequest is the JSON payload for publishing an issue.
type PublishNewsletterRequest struct {
	// Title is the issue subject line. Required.
	Title string `json:"title" binding:"required,min=1" example:"Issue #12: release notes"`
	// TextContent is the plain-text body.
	TextContent string `json:"text_content" example:"Hello from the newsletter."`
	// HTMLContent is the HTML body.
	HTMLContent string `json:"html_content" example:"<p>Hello from the newsletter.</p>"`
}

// ListNewslettersResponse contains a page of issues and pagination metadata.
type ListNewslettersResponse struct {
	Newsletters []domain.NewsletterIssue `json:"newsletters"`
	Pagination  Pagination               `json:"pagination"`
}

// headerIdempotencyReplayed marks responses served from the saved-response
// store rather than fresh execution.
const headerIdempotencyReplayed = "Idempotency-Replayed"

// PublishNewsletter godoc
// @ID          publishNewsletter
// @Summary     Publish a newsletter issue
// @Description Records the issue and schedules delivery to every confirmed subscriber,
// @Description exactly once per Idempotency-Key. Retries with the same key replay the
// @Description original response without re-publishing.
// @Tags        Newsletters
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "Caller identity"  example(editor-1)
// @Param       Idempotency-Key  header  string  true  "Stable key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.PublishNewsletterRequest  true  "Issue payload"
//
// @Success     303  "Issue published; Location points at the issue list"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or invalid/missing Idempotency-Key"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing caller identity"
// @Failure     409  {object}  handlers.ErrorResponse  "Concurrent publish with the same key in flight"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/newsletters [post]
func (h *Handlers) PublishNewsletter(c *gin.Context) {
	ctx := c.Request.Context()

	key, hasKey := middleware.IdempotencyKeyFrom(c)
	if !hasKey {
		fail(c, http.StatusBadRequest, ErrCodeBadIdempotencyKey, "Idempotency-Key header required")
		return
	}

	var req PublishNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required")
		return
	}

	outcome, err := h.pubSvc.Publish(ctx, middleware.UserID(c), key, services.NewIssue{
		Title:       req.Title,
		TextContent: req.TextContent,
		HTMLContent: req.HTMLContent,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyTitle), errors.Is(err, services.ErrEmptyContent):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrPublishInProgress):
			c.Header("Retry-After", "1")
			fail(c, http.StatusConflict, ErrCodePublishInProgress,
				"another submission with this idempotency key is processing")
		default:
			fail(c, http.StatusInternalServerError, ErrCodePublishFailed, err.Error())
		}
		return
	}

	writeStoredResponse(c, outcome)
}

// ListNewsletters godoc
// @ID          listNewsletters
// @Summary     List published newsletter issues
// @Tags        Newsletters
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "Caller identity"  example(editor-1)
// @Param       page       query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"   minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListNewslettersResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing caller identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/newsletters [get]
func (h *Handlers) ListNewsletters(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.pubSvc.ListIssuesPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListNewslettersResponse{
		Newsletters: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// writeStoredResponse replays an HTTP-shaped stored response verbatim:
// status, ordered headers, and raw body bytes. Replays are marked with the
// Idempotency-Replayed header.
func writeStoredResponse(c *gin.Context, outcome *services.Outcome) {
	if outcome.Replayed {
		c.Header(headerIdempotencyReplayed, "true")
	}
	for _, hp := range outcome.Response.Headers {
		c.Header(hp.Name, hp.Value)
	}
	c.Status(outcome.Response.Status)
	if len(outcome.Response.Body) > 0 {
		_, _ = c.Writer.Write(outcome.Response.Body)
	}
}

// clampPagination parses page/page_size query parameters with defaults and
// caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

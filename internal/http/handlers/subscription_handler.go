// Subscription HTTP handlers.
//
// This file exposes the public signup endpoints:
//   - POST /subscriptions          (sign up, triggers a confirmation email)
//   - GET  /subscriptions/confirm  (resolve the emailed token)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postroom/newsletter-backend/internal/domain"
	"github.com/postroom/newsletter-backend/internal/http/middleware"
	"github.com/postroom/newsletter-backend/internal/repo"
	"github.com/postroom/newsletter-backend/internal/services"
)

// SubscribeRequest is the JSON payload for signing up.
type SubscribeRequest struct {
	// Email is the delivery address. Required.
	Email string `json:"email" binding:"required" example:"ursula@example.com"`
	// Name is the subscriber display name. Required.
	Name string `json:"name" binding:"required" example:"Ursula Le Guin"`
}

// SubscribeResponse confirms a pending signup.
type SubscribeResponse struct {
	Subscriber *domain.Subscriber `json:"subscriber"`
}

// Subscribe godoc
// @ID          subscribe
// @Summary     Sign up for the newsletter
// @Description Stores the subscriber as pending confirmation and emails a confirmation link.
// @Tags        Subscriptions
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.SubscribeRequest  true  "Signup payload"
//
// @Success     200  {object}  handlers.SubscribeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid email or name"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already subscribed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscriptions [post]
func (h *Handlers) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and name required")
		return
	}

	sub, err := h.subSvc.Subscribe(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrInvalidName):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case isDuplicateEmail(err):
			fail(c, http.StatusConflict, ErrCodeConflict, "email already subscribed")
		case sub != nil:
			// Stored but the confirmation email did not go out. Report the
			// failure; the signup itself is durable.
			middleware.LoggerFrom(c).Error().Err(err).Msg("confirmation email failed")
			fail(c, http.StatusInternalServerError, ErrCodeSubscribeFailed, "could not send confirmation email")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSubscribeFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, SubscribeResponse{Subscriber: sub})
}

// ConfirmSubscription godoc
// @ID          confirmSubscription
// @Summary     Confirm a pending subscription
// @Tags        Subscriptions
// @Produce     json
//
// @Param       token  query  string  true  "Confirmation token from the signup email"
//
// @Success     200  "Subscription confirmed"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing token"
// @Failure     401  {object}  handlers.ErrorResponse  "Unknown token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscriptions/confirm [get]
func (h *Handlers) ConfirmSubscription(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token required")
		return
	}

	if err := h.subSvc.Confirm(c.Request.Context(), token); err != nil {
		if errors.Is(err, services.ErrUnknownToken) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "unknown subscription token")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	c.Status(http.StatusOK)
}

// isDuplicateEmail unwraps through the service's step wrapping.
func isDuplicateEmail(err error) bool {
	return errors.Is(err, repo.ErrDuplicateEmail)
}

package handler

import (
	"errors"
	"io"
	"net/http"

	"roomchat/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler serves the REST API on top of the chat services.
type Handler struct {
	users    *service.UserService
	rooms    *service.RoomService
	messages *service.MessageService
}

func New(users *service.UserService, rooms *service.RoomService, messages *service.MessageService) *Handler {
	return &Handler{users: users, rooms: rooms, messages: messages}
}

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"Room not found"`
	Code  string `json:"code" example:"not_found"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Left room successfully"`
}

var statusByKind = []struct {
	kind   error
	status int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrCapacityExceeded, http.StatusBadRequest},
	{service.ErrQuotaExceeded, http.StatusBadRequest},
	{service.ErrUnauthorized, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrConflict, http.StatusConflict},
	{service.ErrTooManyAttempts, http.StatusTooManyRequests},
}

// respondError writes err as JSON. Errors outside the service taxonomy are
// logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		for _, m := range statusByKind {
			if errors.Is(svcErr, m.kind) {
				body := gin.H{"error": svcErr.Message, "code": svcErr.Code()}
				if m.kind == service.ErrTooManyAttempts {
					body["blocked"] = true
				}
				c.JSON(m.status, body)
				return
			}
		}
	}

	log.Error().Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Server error", Code: "internal_error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: service.ErrValidation.Error()})
}

// bindJSON decodes the request body into dst. An empty body is accepted
// when optional is set.
func bindJSON(c *gin.Context, dst any, optional bool) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		badRequest(c, "No JSON data provided")
		return false
	}
	return true
}

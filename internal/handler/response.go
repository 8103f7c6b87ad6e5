package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/contentforge/billing-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// StatusOf maps the engine's error taxonomy onto HTTP status codes.
func StatusOf(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest, apperrors.ErrPaymentNotConfirmed:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrQuotaExceeded, apperrors.ErrRenewalNotDue:
		return http.StatusForbidden
	case apperrors.ErrUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes the error as a JSON envelope with the mapped status.
func RespondError(c *gin.Context, err error) {
	c.JSON(StatusOf(err), NewErrorResponse(err.Error()))
}

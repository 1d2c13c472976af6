package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"audionote-backend/dto"
	"audionote-backend/service"
)

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrSessionOwnerMismatch):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConflictOrAlreadyProcessed):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func messageFor(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return service.ErrPayloadTooLarge.Error()
	}
	if errors.Is(err, service.ErrProcessingFailed) {
		return service.ErrProcessingFailed.Error() + ": " + detail(err)
	}
	if errors.Is(err, service.ErrUpstreamFailure) {
		return "Internal server error: " + detail(err)
	}
	return err.Error()
}

// detail drops the error classes from a joined upstream error.
func detail(err error) string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0)
	for _, e := range joined.Unwrap() {
		if e == service.ErrUpstreamFailure || e == service.ErrProcessingFailed {
			continue
		}
		parts = append(parts, detail(e))
	}
	return strings.Join(parts, ": ")
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	event := zerolog.Ctx(c.Request.Context()).Info()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(c.Request.Context()).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	c.AbortWithStatusJSON(status, dto.APIResponse{
		Success: false,
		Message: messageFor(err),
	})
}

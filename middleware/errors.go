package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vnkhanh/coderoom-server/access"
	"github.com/vnkhanh/coderoom-server/realtime"
)

// StatusFor maps a service error to an HTTP status and a client message.
// Anything unrecognised is a 500 with a generic message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, access.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, access.ErrNotAuthorized):
		return http.StatusForbidden, "You are not allowed to do that"
	case errors.Is(err, access.ErrRoomNameTaken):
		return http.StatusConflict, "Room name already taken"
	case errors.Is(err, access.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, access.ErrInvalidInput),
		errors.Is(err, realtime.ErrInvalidPayload),
		errors.Is(err, realtime.ErrUnknownKind):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, realtime.ErrUpstreamLookup):
		return http.StatusBadGateway, "User lookup failed"
	case errors.Is(err, realtime.ErrConfiguration):
		return http.StatusServiceUnavailable, "Realtime service unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// AbortWithError writes the mapped error response and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	body := gin.H{"message": msg}
	if status < http.StatusInternalServerError {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"minerva/pkg/errors"
)

// respondError maps pipeline sentinels onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidTransition), errors.Is(err, errors.ErrAlreadyFinalized),
		errors.Is(err, errors.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, errors.ErrInvalidInput), errors.Is(err, errors.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrUnavailable):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	body := gin.H{"error": err.Error()}
	if errors.IsRetryable(err) {
		body["retryable"] = true
	}
	c.JSON(status, body)
}

// pathUUID parses a uuid path parameter, replying 400 itself on failure
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

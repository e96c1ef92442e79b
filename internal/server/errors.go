package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bububa/regulation-agents/schema"
)

// errorStatus maps sentinel errors to http status codes
func errorStatus(err error) int {
	switch {
	// fan-out failures join the per domain causes, check them first
	case errors.Is(err, schema.ErrAllAgentsFailed),
		errors.Is(err, schema.ErrUpstream):
		return http.StatusBadGateway

	case errors.Is(err, schema.ErrInvalidQuery):
		return http.StatusBadRequest

	case errors.Is(err, schema.ErrUnknownDomain):
		return http.StatusNotFound

	case errors.Is(err, schema.ErrNoDomain),
		errors.Is(err, schema.ErrNoContext):
		return http.StatusUnprocessableEntity

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func mapDomainError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mastAk7/finvest/internal/domain"
)

// statusForKind maps a domain error kind to an HTTP status code.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidConfiguration:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a JSON error response for a service error. Domain
// errors carry their message to the client; anything else becomes a generic
// 500 so internals do not leak.
func respondError(c *gin.Context, err error, fallbackMsg string) {
	if kind, ok := domain.KindOf(err); ok {
		c.JSON(statusForKind(kind), gin.H{"error": err.Error()})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallbackMsg})
}

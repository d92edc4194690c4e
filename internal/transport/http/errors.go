package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"teamquiz-service/internal/domain"
)

type errorResponse struct {
	Error         string `json:"error"`
	UnjudgedCount *int   `json:"unjudged_count,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to statuses. Unclassified errors are logged
// and hidden from the client.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		log.Printf("http: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		resp.Error = "internal server error"
	}
	var unjudged *domain.UnjudgedError
	if errors.As(err, &unjudged) {
		n := unjudged.Count
		resp.UnjudgedCount = &n
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}

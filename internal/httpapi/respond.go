package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/service/love"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message,omitempty"`
	CooldownRemaining *int   `json:"cooldownRemaining,omitempty"`
}

// fail writes err with the status its kind maps to. Infrastructure
// failures are logged here and reach the client without details.
func fail(c *gin.Context, log *slog.Logger, err error) {
	status := svcErr.HTTPStatus(err)

	de, ok := svcErr.As(err)
	if !ok || de.Kind == svcErr.KindStorageUnavailable || de.Kind == svcErr.KindUpstream {
		log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(ctxRequestID),
			"err", err,
		)
	}
	if !ok {
		c.AbortWithStatusJSON(status, ErrorResponse{Error: "internal_error", Message: "internal error"})
		return
	}

	body := ErrorResponse{Error: de.Code, Message: de.Message}
	switch de.Kind {
	case svcErr.KindStorageUnavailable:
		body.Message = "service temporarily unavailable"
	case svcErr.KindRateLimited:
		secs := love.Seconds(de.RetryAfter)
		body.CooldownRemaining = &secs
		if secs > 0 {
			c.Header("Retry-After", strconv.Itoa(secs))
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// badRequest answers a body or query that failed binding.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   svcErr.CodeInvalidArgument,
		Message: err.Error(),
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

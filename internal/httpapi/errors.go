package httpapi

import (
	"errors"

	"virtual-mentor/internal/apperr"
	"virtual-mentor/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RespondError writes the {error, details?} body for err and aborts the chain.
// Internal causes are logged, never echoed, except for provider errors whose
// message the caller needs to act on.
func RespondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	body := gin.H{"error": publicMessage(err)}
	if d := apperr.Details(err); d != "" && d != body["error"] {
		body["details"] = d
	}
	if status >= 500 {
		logger.FromGin(c).Error("request failed", "code", string(apperr.CodeOf(err)), "err", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func publicMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Reason != "" {
		return ae.Reason
	}
	return "internal error"
}

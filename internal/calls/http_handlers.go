package calls

import (
	"net/http"

	"virtual-mentor/internal/apperr"
	"virtual-mentor/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// InitiateHandler serves POST /api/call/initiate.
type InitiateHandler struct {
	Initiator *Initiator
}

func (h InitiateHandler) Handle(c *gin.Context) {
	if h.Initiator == nil {
		httpapi.RespondError(c, apperr.Internal("call initiator not configured", nil))
		return
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.RespondError(c, apperr.InvalidRequest("invalid json"))
		return
	}
	res, err := h.Initiator.Initiate(c.Request.Context(), req)
	if err != nil {
		httpapi.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

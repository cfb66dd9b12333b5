package telephony

import (
	"context"
	"errors"
	"net/http"

	"virtual-mentor/internal/apperr"
	"virtual-mentor/internal/httpapi"
	"virtual-mentor/pkg/logger"

	"github.com/gin-gonic/gin"
)

// EventSink receives verified events. It is implemented by the session projector.
type EventSink interface {
	Apply(ctx context.Context, e Event) error
}

// WebhookHandler authenticates provider callbacks and hands them to Sink.
//
// No business logic here.
type WebhookHandler struct {
	Verifier WebhookVerifier
	Sink     EventSink

	// MissingConfig names required variables that are unset; non-empty means 500.
	MissingConfig []string
}

func (h WebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	if len(h.MissingConfig) > 0 || h.Verifier == nil {
		httpapi.RespondError(c, apperr.Configuration("webhook verification not configured", h.MissingConfig...))
		return
	}
	if h.Sink == nil {
		httpapi.RespondError(c, apperr.Internal("webhook sink not configured", nil))
		return
	}

	// Reject unsigned requests before touching the body or the store.
	if c.GetHeader("Authorization") == "" {
		httpapi.RespondError(c, apperr.Authentication("missing authorization header", nil))
		return
	}

	ev, err := h.Verifier.Verify(c.Request)
	switch {
	case errors.Is(err, ErrMalformedEvent):
		log.Warn("webhook event malformed; acknowledged", "err", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	case err != nil:
		log.Warn("webhook verification failed", "err", err)
		httpapi.RespondError(c, apperr.Authentication("invalid webhook signature", err))
		return
	}

	meta := HeaderOf(ev)
	log = log.With("event", string(ev.Kind()), "event_id", meta.ID, "room", RoomNameOf(ev))
	switch ev.(type) {
	case Unknown, TrackPublished, TrackUnpublished:
		log.Info("webhook event acknowledged")
	default:
		log.Info("webhook event received")
	}

	if err := h.Sink.Apply(c.Request.Context(), ev); err != nil {
		log.Error("webhook processing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Webhook processing failed",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"virtual-mentor/internal/apperr"
	"virtual-mentor/internal/audit"
	"virtual-mentor/internal/conversations"
	"virtual-mentor/internal/reporting"
	"virtual-mentor/internal/session"
	"virtual-mentor/internal/users"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Sessions      session.Repository
	Conversations conversations.Repository
	Users         *users.Service
	Reporting     *reporting.Service
	CallEvents    *audit.Service

	Clock func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

// --- Session messages ---

type addMessageRequest struct {
	Text           string `json:"text"`
	Sender         string `json:"sender"`
	IsTranscribing bool   `json:"isTranscribing"`
}

// AddMessage appends one chat turn. Callers: the voice agent.
func (h Handlers) AddMessage(c *gin.Context) {
	sessionID := c.Param("sessionId")
	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.InvalidRequest("invalid json"))
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.Sender == "" {
		RespondError(c, apperr.InvalidRequest("Text and sender are required"))
		return
	}
	sender := session.Sender(req.Sender)
	if !sender.Valid() {
		RespondError(c, apperr.InvalidRequest(`Sender must be either "ai" or "user"`))
		return
	}

	msg, err := h.Sessions.AppendMessage(c.Request.Context(), session.Message{
		SessionID:      sessionID,
		Text:           req.Text,
		Sender:         sender,
		Timestamp:      h.now(),
		IsTranscribing: req.IsTranscribing,
	})
	if err != nil {
		RespondError(c, sessionErr(err, "Failed to add message"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": msg.ID, "sessionId": sessionID})
}

func (h Handlers) ListMessages(c *gin.Context) {
	sessionID := c.Param("sessionId")
	msgs, err := h.Sessions.ListMessages(c.Request.Context(), sessionID)
	if err != nil {
		RespondError(c, sessionErr(err, "Failed to fetch messages"))
		return
	}
	if msgs == nil {
		msgs = []session.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": sessionID, "messages": msgs, "count": len(msgs)})
}

// --- Transcript ---

type saveTranscriptRequest struct {
	Transcript string `json:"transcript"`
}

func (h Handlers) SaveTranscript(c *gin.Context) {
	sessionID := c.Param("sessionId")
	var req saveTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperr.InvalidRequest("invalid json"))
		return
	}
	if req.Transcript == "" {
		RespondError(c, apperr.InvalidRequest("Transcript is required"))
		return
	}
	now := h.now()
	_, err := h.Sessions.Mutate(c.Request.Context(), sessionID, func(s *session.Session) error {
		s.Transcript = req.Transcript
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		RespondError(c, sessionErr(err, "Failed to save transcript"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": sessionID, "message": "Transcript saved successfully"})
}

func (h Handlers) GetTranscript(c *gin.Context) {
	sessionID := c.Param("sessionId")
	s, err := h.Sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		RespondError(c, sessionErr(err, "Failed to fetch transcript"))
		return
	}
	var transcript any
	if s.Transcript != "" {
		transcript = s.Transcript
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"sessionId":     sessionID,
		"transcript":    transcript,
		"hasTranscript": s.Transcript != "",
	})
}

// --- Conversations ---

func (h Handlers) GetConversation(c *gin.Context) {
	conv, err := h.Conversations.Get(c.Request.Context(), c.Param("conversationId"))
	if errors.Is(err, conversations.ErrNotFound) {
		RespondError(c, apperr.NotFound("Conversation not found"))
		return
	}
	if err != nil {
		RespondError(c, apperr.Internal("Failed to fetch conversation", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (h Handlers) ListConversationMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, apperr.InvalidRequest("limit must be an integer"))
			return
		}
		limit = n
	}
	msgs, err := h.Conversations.ListMessages(c.Request.Context(), c.Param("conversationId"), conversations.ClampLimit(limit))
	if errors.Is(err, conversations.ErrNotFound) {
		RespondError(c, apperr.NotFound("Conversation not found"))
		return
	}
	if err != nil {
		RespondError(c, apperr.Internal("Failed to fetch messages", err))
		return
	}
	if msgs == nil {
		msgs = []conversations.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// --- Admin ---

func (h Handlers) AdminListUsers(c *gin.Context) {
	list, err := h.Users.ListWithStatus(c.Request.Context())
	if err != nil {
		RespondError(c, apperr.Internal("Failed to fetch users", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list, "count": len(list)})
}

const defaultSummaryWindow = 7 * 24 * time.Hour

// AdminSessionsSummary accepts RFC3339 from/to; the window defaults to the last 7 days.
func (h Handlers) AdminSessionsSummary(c *gin.Context) {
	to, err := parseTime(c.Query("to"), h.now())
	if err != nil {
		RespondError(c, apperr.InvalidRequest("to must be an RFC3339 timestamp"))
		return
	}
	from, err := parseTime(c.Query("from"), to.Add(-defaultSummaryWindow))
	if err != nil {
		RespondError(c, apperr.InvalidRequest("from must be an RFC3339 timestamp"))
		return
	}

	out, err := h.Reporting.SessionsSummary(c.Request.Context(), reporting.SessionsSummaryRequest{
		Range: reporting.TimeRange{From: from, To: to},
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		RespondError(c, apperr.InvalidRequest("from must be before to"))
		return
	}
	if err != nil {
		RespondError(c, apperr.Internal("Failed to build summary", err))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) AdminSessionEvents(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if _, err := h.Sessions.Get(c.Request.Context(), sessionID); err != nil {
		RespondError(c, sessionErr(err, "Failed to fetch call events"))
		return
	}
	list, err := h.CallEvents.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		RespondError(c, apperr.Internal("Failed to fetch call events", err))
		return
	}
	if list == nil {
		list = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "events": list})
}

func sessionErr(err error, reason string) error {
	if errors.Is(err, session.ErrNotFound) {
		return apperr.NotFound("Session not found")
	}
	return apperr.Internal(reason, err)
}

func parseTime(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}

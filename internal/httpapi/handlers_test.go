package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"virtual-mentor/internal/audit"
	"virtual-mentor/internal/conversations"
	"virtual-mentor/internal/reporting"
	"virtual-mentor/internal/session"
	"virtual-mentor/internal/users"
)

var fixedNow = time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)

type env struct {
	router   *gin.Engine
	sessions *session.MemoryRepo
	convs    *conversations.MemoryRepo
	events   *audit.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := session.NewMemoryRepo()
	convs := conversations.NewMemoryRepo()
	userRepo := users.NewMemoryRepo(
		users.Profile{UID: "u1", Name: "Ada", Phone: "+15551234567"},
		users.Profile{UID: "u2", Name: "Bob"},
	)
	events := audit.NewService(audit.NewMemoryRepo())

	h := Handlers{
		Sessions:      sessions,
		Conversations: convs,
		Users:         users.NewService(userRepo, convs),
		Reporting:     reporting.NewService(sessions),
		CallEvents:    events,
		Clock:         func() time.Time { return fixedNow },
	}

	r := gin.New()
	r.POST("/api/sessions/:sessionId/messages", h.AddMessage)
	r.GET("/api/sessions/:sessionId/messages", h.ListMessages)
	r.POST("/api/sessions/:sessionId/transcript", h.SaveTranscript)
	r.GET("/api/sessions/:sessionId/transcript", h.GetTranscript)
	r.GET("/api/conversations/:conversationId", h.GetConversation)
	r.GET("/api/conversations/:conversationId/messages", h.ListConversationMessages)
	r.GET("/api/admin/users", h.AdminListUsers)
	r.GET("/api/admin/sessions/summary", h.AdminSessionsSummary)
	r.GET("/api/admin/sessions/:sessionId/events", h.AdminSessionEvents)

	require.NoError(t, sessions.Create(context.Background(), session.Session{
		ID:          "s1",
		UserID:      "u1",
		Status:      session.StatusInProgress,
		CallStatus:  session.CallStatusRinging,
		RoomName:    "call-u1-1",
		PhoneNumber: "+15551234567",
		CreatedAt:   fixedNow.Add(-time.Hour),
		UpdatedAt:   fixedNow.Add(-time.Hour),
	}))
	return &env{router: r, sessions: sessions, convs: convs, events: events}
}

func (e *env) do(t *testing.T, method, target string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestMessages_AddAndList(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodPost, "/api/sessions/s1/messages", map[string]any{"text": "Hi there", "sender": "ai"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"])
	require.Equal(t, "s1", body["sessionId"])
	require.NotEmpty(t, body["messageId"])

	code, body = e.do(t, http.MethodGet, "/api/sessions/s1/messages", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body["count"])
	msgs := body["messages"].([]any)
	first := msgs[0].(map[string]any)
	require.Equal(t, "Hi there", first["text"])
	require.Equal(t, false, first["isTranscribing"])
}

func TestMessages_Validation(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodPost, "/api/sessions/s1/messages", map[string]any{"text": "hi"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Text and sender are required", body["error"])

	code, body = e.do(t, http.MethodPost, "/api/sessions/s1/messages", map[string]any{"text": "hi", "sender": "bot"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, `Sender must be either "ai" or "user"`, body["error"])

	code, body = e.do(t, http.MethodPost, "/api/sessions/nope/messages", map[string]any{"text": "hi", "sender": "user"})
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Session not found", body["error"])

	code, _ = e.do(t, http.MethodGet, "/api/sessions/nope/messages", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestTranscript_SaveAndGet(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodGet, "/api/sessions/s1/transcript", nil)
	require.Equal(t, http.StatusOK, code)
	require.Nil(t, body["transcript"])
	require.Equal(t, false, body["hasTranscript"])

	code, body = e.do(t, http.MethodPost, "/api/sessions/s1/transcript", map[string]any{})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Transcript is required", body["error"])

	code, body = e.do(t, http.MethodPost, "/api/sessions/s1/transcript", map[string]any{"transcript": "AI: hello\nUser: hi"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Transcript saved successfully", body["message"])

	code, body = e.do(t, http.MethodGet, "/api/sessions/s1/transcript", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "AI: hello\nUser: hi", body["transcript"])
	require.Equal(t, true, body["hasTranscript"])

	code, _ = e.do(t, http.MethodPost, "/api/sessions/nope/transcript", map[string]any{"transcript": "x"})
	require.Equal(t, http.StatusNotFound, code)
}

func TestConversations(t *testing.T) {
	e := newEnv(t)
	e.convs.Put(conversations.Conversation{ID: "c1", PhoneNumber: "+15551234567", Status: conversations.StatusActive, StartedAt: fixedNow},
		conversations.Message{ID: "m2", Message: "second", Role: conversations.RoleUser, Timestamp: fixedNow.Add(time.Second)},
		conversations.Message{ID: "m1", Message: "first", Role: conversations.RoleAssistant, Timestamp: fixedNow},
	)

	code, body := e.do(t, http.MethodGet, "/api/conversations/c1", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "c1", body["conversation"].(map[string]any)["id"])

	code, body = e.do(t, http.MethodGet, "/api/conversations/c1/messages?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	require.Equal(t, "first", msgs[0].(map[string]any)["message"])

	code, _ = e.do(t, http.MethodGet, "/api/conversations/c1/messages?limit=ten", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, body = e.do(t, http.MethodGet, "/api/conversations/missing", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Conversation not found", body["error"])
}

func TestAdminUsers_StatusFromLatestConversation(t *testing.T) {
	e := newEnv(t)
	e.convs.Put(conversations.Conversation{ID: "c1", PhoneNumber: "+15551234567", Status: conversations.StatusActive, StartedAt: fixedNow})

	code, body := e.do(t, http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 2, body["count"])
	statuses := map[string]string{}
	for _, raw := range body["users"].([]any) {
		u := raw.(map[string]any)
		statuses[u["uid"].(string)] = u["status"].(string)
	}
	require.Equal(t, map[string]string{"u1": "in-call", "u2": "inactive"}, statuses)
}

func TestAdminSessionsSummary(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(t, http.MethodGet, "/api/admin/sessions/summary", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body["totalSessions"])
	require.EqualValues(t, 1, body["openSessions"])

	code, _ = e.do(t, http.MethodGet, "/api/admin/sessions/summary?from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodGet, "/api/admin/sessions/summary?from=2026-02-11T00:00:00Z&to=2026-02-10T00:00:00Z", nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestAdminSessionEvents(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.events.Record(context.Background(), "s1", "call-u1-1", "participant_joined", audit.OutcomeApplied, "status connected"))

	code, body := e.do(t, http.MethodGet, "/api/admin/sessions/s1/events", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["events"].([]any), 1)

	code, _ = e.do(t, http.MethodGet, "/api/admin/sessions/nope/events", nil)
	require.Equal(t, http.StatusNotFound, code)
}

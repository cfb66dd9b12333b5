package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type spyVerifier struct {
	calls int
	event Event
	err   error
}

func (v *spyVerifier) Verify(r *http.Request) (Event, error) {
	v.calls++
	return v.event, v.err
}

type spySink struct {
	applied []Event
	err     error
}

func (s *spySink) Apply(ctx context.Context, e Event) error {
	s.applied = append(s.applied, e)
	return s.err
}

func serveWebhook(t *testing.T, h WebhookHandler, authz string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/webhooks/livekit", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/livekit", strings.NewReader(`{}`))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_MissingAuthorizationNeverVerifiesOrDispatches(t *testing.T) {
	v := &spyVerifier{}
	sink := &spySink{}

	w := serveWebhook(t, WebhookHandler{Verifier: v, Sink: sink}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Zero(t, v.calls)
	require.Empty(t, sink.applied)
}

func TestWebhookHandler_NotConfigured(t *testing.T) {
	w := serveWebhook(t, WebhookHandler{
		Verifier:      &spyVerifier{},
		Sink:          &spySink{},
		MissingConfig: []string{"LIVEKIT_API_SECRET"},
	}, "token")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "LIVEKIT_API_SECRET")
}

func TestWebhookHandler_BadSignature(t *testing.T) {
	sink := &spySink{}
	v := &spyVerifier{err: errors.Join(ErrInvalidSignature, errors.New("hash mismatch"))}

	w := serveWebhook(t, WebhookHandler{Verifier: v, Sink: sink}, "token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, sink.applied)
}

func TestWebhookHandler_MalformedEventIsAcknowledged(t *testing.T) {
	sink := &spySink{}
	v := &spyVerifier{err: ErrMalformedEvent}

	w := serveWebhook(t, WebhookHandler{Verifier: v, Sink: sink}, "token")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, sink.applied)
}

func TestWebhookHandler_DispatchesAndAcknowledges(t *testing.T) {
	sink := &spySink{}
	v := &spyVerifier{event: RoomFinished{Room: RoomInfo{Name: "call-u1-1"}}}

	w := serveWebhook(t, WebhookHandler{Verifier: v, Sink: sink}, "token")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sink.applied, 1)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, true, body["received"])
}

func TestWebhookHandler_SinkFailureAsksForRetry(t *testing.T) {
	sink := &spySink{err: errors.New("db down")}
	v := &spyVerifier{event: ParticipantLeft{Room: RoomInfo{Name: "call-u1-1"}, Participant: Participant{Identity: "phone-u1"}}}

	w := serveWebhook(t, WebhookHandler{Verifier: v, Sink: sink}, "token")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Webhook processing failed", body["error"])
	require.Equal(t, "db down", body["details"])
}

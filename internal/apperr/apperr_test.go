package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_MapsCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "invalid", err: InvalidRequest("phone_required"), status: http.StatusBadRequest},
		{name: "auth", err: Authentication("missing_authorization", nil), status: http.StatusUnauthorized},
		{name: "forbidden", err: Forbidden("role"), status: http.StatusForbidden},
		{name: "not found", err: NotFound("session_not_found"), status: http.StatusNotFound},
		{name: "conflict", err: Conflict("call_in_progress", nil), status: http.StatusConflict},
		{name: "config", err: Configuration("livekit", "LIVEKIT_URL"), status: http.StatusInternalServerError},
		{name: "provider", err: Provider("dial_failed", errors.New("busy")), status: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("outer: %w", NotFound("x")), status: http.StatusNotFound},
		{name: "unclassified", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.status, Status(tc.err))
		})
	}
}

func TestDetails_NeverLeaksValues(t *testing.T) {
	err := Configuration("livekit configuration is incomplete", "LIVEKIT_API_KEY", "LIVEKIT_SIP_TRUNK_ID")
	require.Equal(t, "missing: LIVEKIT_API_KEY, LIVEKIT_SIP_TRUNK_ID", Details(err))

	perr := Provider("sip_dial_failed", errors.New("trunk rejected call"))
	require.Equal(t, "trunk rejected call", Details(perr))
	require.ErrorContains(t, perr, "trunk rejected call")

	require.Empty(t, Details(errors.New("plain")))
}

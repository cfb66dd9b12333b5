package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"virtual-mentor/internal/config"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	now := time.Unix(1700000000, 0).UTC()
	tok, err := m.IssueAccess(now, "user-1", "member")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "member" || claims.TokenType != TokenTypeAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.Verify(tok, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerifyRejectsForeignSecretAndIssuer(t *testing.T) {
	now := time.Now()
	a, _ := NewManager(config.AuthConfig{JWTSecret: "a", AccessTokenTTL: time.Minute})
	b, _ := NewManager(config.AuthConfig{JWTSecret: "b", AccessTokenTTL: time.Minute})
	tok, err := a.IssueAccess(now, "u", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Verify(tok, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	strict, _ := NewManager(config.AuthConfig{JWTSecret: "a", JWTIssuer: "mentor", AccessTokenTTL: time.Minute})
	if _, err := strict.Verify(tok, now); !errors.Is(err, ErrTokenClaims) {
		t.Fatalf("expected issuer mismatch, got %v", err)
	}
}

func TestIssueServiceToken(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	now := time.Now()
	if _, err := m.IssueService(now, "voice-agent", "agent", 0); err == nil {
		t.Fatalf("expected ttl error")
	}
	tok, err := m.IssueService(now, "voice-agent", "agent", 24*time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(tok, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.TokenType != TokenTypeService || claims.Role != "agent" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRequireAccessTokenOrQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	tok, err := m.IssueAccess(time.Now(), "u1", "member")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := gin.New()
	r.GET("/h", RequireAccessToken(m), echoIdentity)
	r.GET("/q", RequireAccessTokenOrQuery(m), echoIdentity)

	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"header", "/h", "Bearer " + tok, http.StatusOK},
		{"missing", "/h", "", http.StatusUnauthorized},
		{"garbage", "/h", "Bearer nope", http.StatusUnauthorized},
		{"query not accepted on header route", "/h?token=" + tok, "", http.StatusUnauthorized},
		{"query", "/q?token=" + tok, "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func echoIdentity(c *gin.Context) {
	uid, err := UserID(c.Request.Context())
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.String(http.StatusOK, uid)
}

func TestIdentityFrom(t *testing.T) {
	if _, ok := IdentityFrom(context.Background()); ok {
		t.Fatal("expected no identity on a bare context")
	}
	if _, err := Role(context.Background()); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}

	ctx := WithIdentity(context.Background(), Identity{UserID: "agent-1", Role: "agent", TokenType: TokenTypeService})
	id, ok := IdentityFrom(ctx)
	if !ok || !id.IsService() || id.Role != "agent" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

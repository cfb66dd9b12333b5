package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"virtual-mentor/pkg/logger"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireAccessToken verifies a bearer token and injects identity into request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return requireToken(m, false)
}

// RequireAccessTokenOrQuery also accepts ?token=, for browser websocket clients
// that cannot set headers.
func RequireAccessTokenOrQuery(m *Manager) gin.HandlerFunc {
	return requireToken(m, true)
}

func requireToken(m *Manager, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c.GetHeader(authorizationHeader))
		if tok == "" && allowQuery {
			tok = strings.TrimSpace(c.Query("token"))
		}
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		id := Identity{UserID: claims.UserID, Role: claims.Role, TokenType: claims.TokenType}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		logger.FromGin(c).Debug("caller authenticated", "caller", id.UserID, "role", id.Role, "token_type", string(id.TokenType))

		c.Next()
	}
}

func bearerToken(header string) string {
	raw := strings.TrimSpace(header)
	if !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
}

package rbac

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"virtual-mentor/internal/auth"
)

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireSelfOrAdmin allows the request when the path parameter names the caller.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CanAccessUser(c.Request.Context(), c.Param(param)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// CanAccessUser reports whether the identity in ctx may read userID's data.
func CanAccessUser(ctx context.Context, userID string) bool {
	if role, err := auth.Role(ctx); err == nil && IsAdmin(role) {
		return true
	}
	uid, err := auth.UserID(ctx)
	return err == nil && userID != "" && uid == userID
}

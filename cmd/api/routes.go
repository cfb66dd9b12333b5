package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"virtual-mentor/internal/auth"
	"virtual-mentor/internal/calls"
	"virtual-mentor/internal/rbac"
	"virtual-mentor/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, s *services) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", s.readiness)

	api := r.Group("/api")

	// Call initiation is public; the per-user cap bounds abuse.
	api.POST("/call/initiate", calls.InitiateHandler{Initiator: s.initiator}.Handle)

	// Provider webhooks authenticate by signature, not bearer token.
	api.POST("/webhooks/livekit", s.webhook.Handle)

	bearer := auth.RequireAccessToken(s.auth)

	sessions := api.Group("/sessions/:sessionId")
	sessions.Use(bearer, rbac.RequireAnyRole(rbac.RoleAgent))
	{
		sessions.POST("/messages", s.api.AddMessage)
		sessions.GET("/messages", s.api.ListMessages)
		sessions.POST("/transcript", s.api.SaveTranscript)
		sessions.GET("/transcript", s.api.GetTranscript)
	}

	convs := api.Group("/conversations/:conversationId")
	convs.Use(bearer)
	{
		convs.GET("", s.api.GetConversation)
		convs.GET("/messages", s.api.ListConversationMessages)
	}

	// Browsers cannot set headers on a websocket upgrade.
	api.GET("/users/:userId/live",
		auth.RequireAccessTokenOrQuery(s.auth),
		rbac.RequireSelfOrAdmin("userId"),
		s.live.Handle,
	)

	admin := api.Group("/admin")
	admin.Use(bearer, rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		admin.GET("/users", s.api.AdminListUsers)
		admin.GET("/sessions/summary", s.api.AdminSessionsSummary)
		admin.GET("/sessions/:sessionId/events", s.api.AdminSessionEvents)
	}
}

// readiness checks the stores and, when configured, the telephony provider.
func (s *services) readiness(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	ok := true

	if err := utils.HealthCheck(ctx, s.deps.db, 2*time.Second); err != nil {
		checks["postgres"], ok = err.Error(), false
	} else {
		checks["postgres"] = "ok"
	}
	if err := s.deps.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"], ok = err.Error(), false
	} else {
		checks["redis"] = "ok"
	}
	if s.provider == nil {
		checks["telephony"] = "not configured"
	} else if err := s.provider.HealthCheck(ctx); err != nil {
		checks["telephony"] = err.Error()
	} else {
		checks["telephony"] = "ok"
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ok, "checks": checks})
}

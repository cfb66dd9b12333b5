package main

import (
	"context"
	"time"

	"virtual-mentor/internal/audit"
	"virtual-mentor/internal/auth"
	"virtual-mentor/internal/calls"
	"virtual-mentor/internal/conversations"
	"virtual-mentor/internal/events"
	"virtual-mentor/internal/httpapi"
	"virtual-mentor/internal/observer"
	"virtual-mentor/internal/projector"
	"virtual-mentor/internal/rbac"
	"virtual-mentor/internal/reconcile"
	"virtual-mentor/internal/reporting"
	"virtual-mentor/internal/session"
	"virtual-mentor/internal/telephony"
	"virtual-mentor/internal/users"
)

// capSlack keeps an unanswered call's slot alive a little past the room's own empty timeout.
const capSlack = 5 * time.Minute

// services is the wired object graph behind the HTTP routes.
type services struct {
	auth      *auth.Manager
	provider  telephony.Provider
	initiator *calls.Initiator
	webhook   telephony.WebhookHandler
	api       httpapi.Handlers
	live      observer.WSHandler
	sweeper   *reconcile.Sweeper
	publisher events.Publisher
	deps      *runtimeDeps
}

func buildServices(ctx context.Context, deps *runtimeDeps) (*services, error) {
	cfg, log := deps.cfg, deps.log

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return nil, err
	}

	var pub events.Publisher = events.Noop{}
	if cfg.AMQP.URL != "" {
		p, err := events.NewAMQPPublisher(ctx, events.AMQPOptions{URL: cfg.AMQP.URL, Exchange: cfg.AMQP.Exchange, Logger: log})
		if err != nil {
			log.Warn("lifecycle events disabled: broker unreachable", "err", err)
		} else {
			pub = p
		}
	}

	feed := observer.NewRedisFeed(deps.rdb)
	sessions := observer.NewPublishingRepo(session.NewPostgresRepo(deps.db), feed)
	convs := conversations.NewPostgresRepo(deps.db)
	userSvc := users.NewService(users.NewPostgresRepo(deps.db), convs)
	callEvents := audit.NewService(audit.NewPostgresRepo(deps.db))
	limiter := calls.NewRedisLimiter(deps.rdb, calls.SlotTTLs{
		Pending: cfg.Calls.RoomEmptyTimeout + capSlack,
		Live:    cfg.Calls.MaxDuration,
	})

	var provider telephony.Provider
	lk, err := telephony.NewLiveKitProvider(telephony.LiveKitConfig{
		URL:        cfg.LiveKit.URL,
		APIKey:     cfg.LiveKit.APIKey,
		APISecret:  cfg.LiveKit.APISecret,
		SIPTrunkID: cfg.LiveKit.SIPTrunkID,
	})
	if err != nil {
		log.Warn("livekit provider disabled", "missing", cfg.LiveKit.MissingForCalls())
	} else {
		provider = lk
	}

	var verifier telephony.WebhookVerifier
	if len(cfg.LiveKit.MissingForWebhooks()) == 0 {
		verifier = telephony.NewLiveKitVerifier(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	}

	initiator := calls.NewInitiator(sessions, provider, limiter, pub, calls.Config{
		RoomBaseURL:     cfg.LiveKit.URL,
		EmptyTimeout:    cfg.Calls.RoomEmptyTimeout,
		MaxParticipants: cfg.Calls.MaxParticipants,
		AgentTokenTTL:   cfg.Calls.AgentTokenTTL,
		Missing:         cfg.LiveKit.MissingForCalls(),
	})
	webhook := telephony.WebhookHandler{
		Verifier:      verifier,
		Sink:          projector.New(sessions, callEvents, limiter, pub),
		MissingConfig: cfg.LiveKit.MissingForWebhooks(),
	}
	api := httpapi.Handlers{
		Sessions:      sessions,
		Conversations: convs,
		Users:         userSvc,
		Reporting:     reporting.NewService(sessions),
		CallEvents:    callEvents,
	}
	live := observer.WSHandler{
		Watcher:  observer.NewWatcher(userSvc, sessions, feed),
		CanWatch: rbac.CanAccessUser,
	}

	s := &services{
		auth:      authManager,
		provider:  provider,
		initiator: initiator,
		webhook:   webhook,
		api:       api,
		live:      live,
		publisher: pub,
		deps:      deps,
	}
	if provider != nil {
		s.sweeper = reconcile.NewSweeper(sessions, provider, limiter, callEvents, pub, cfg.Reconcile.StaleAfter)
	}
	return s, nil
}

func (s *services) Close() {
	if err := s.publisher.Close(); err != nil {
		s.deps.log.Warn("event publisher close failed", "err", err)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"virtual-mentor/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := openDeps(rootCtx, true)
	if err != nil {
		return err
	}
	defer deps.Close()
	cfg, log := deps.cfg, deps.log

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := buildServices(rootCtx, deps)
	if err != nil {
		return err
	}
	defer svc.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, svc)

	if svc.sweeper != nil && cfg.Reconcile.Interval > 0 {
		go svc.sweeper.Run(logger.With(rootCtx, log.With("component", "reconcile")), cfg.Reconcile.Interval)
		log.Info("reconcile sweep enabled", "interval", cfg.Reconcile.Interval.String(), "stale_after", cfg.Reconcile.StaleAfter.String())
	}

	// No WriteTimeout: websocket streams manage their own deadlines.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
		return err
	}
	return nil
}

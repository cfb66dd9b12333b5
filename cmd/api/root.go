package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"virtual-mentor/internal/config"
	"virtual-mentor/pkg/logger"
	"virtual-mentor/pkg/utils"
)

var rootCmd = &cobra.Command{
	Use:           "vmentor",
	Short:         "Virtual Mentor call-session service",
	Long:          "Places AI mentor phone calls through LiveKit and tracks each call session.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd, tokenCmd)
}

// runtimeDeps are the process-wide resources every command that touches
// storage needs. All values must come from env.
type runtimeDeps struct {
	cfg config.Config
	log *slog.Logger
	db  *sql.DB
	rdb *redis.Client
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config load failed: %w", err)
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	return cfg, log, nil
}

func openDeps(ctx context.Context, withRedis bool) (*runtimeDeps, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, fmt.Errorf("postgres init failed: %w", err)
	}
	d := &runtimeDeps{cfg: cfg, log: log, db: db}

	if withRedis {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("redis init failed: %w", err)
		}
		d.rdb = rdb
	}
	return d, nil
}

func (d *runtimeDeps) Close() {
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

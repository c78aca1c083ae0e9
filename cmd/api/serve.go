package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/yourusername/members-only/internal/config"
	"github.com/yourusername/members-only/internal/db"
	"github.com/yourusername/members-only/internal/logging"
	"github.com/yourusername/members-only/internal/metrics"
	"github.com/yourusername/members-only/internal/server"
	"github.com/yourusername/members-only/internal/session"
	"github.com/yourusername/members-only/internal/users"
)

func serveCmd() *cli.Command {
	var bind string
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "bind",
				Usage:       "Address to listen on (defaults to :$PORT)",
				Destination: &bind,
			},
		},
		Action: func(cctx *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if bind == "" {
				bind = cfg.Addr()
			}
			ctx := logging.WithLogger(cctx.Context, logger)

			gin.SetMode(cfg.GinMode)

			conn, target, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			if cfg.AutoMigrate {
				if err := db.Migrate(ctx, conn, target); err != nil {
					return err
				}
				logger.Info().Str("driver", target.Driver).Msg("Migrations applied")
			}

			store, closeStore, err := newSessionStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			router, err := server.NewRouter(server.Deps{
				Config:  cfg,
				Users:   users.NewSQLRepository(conn),
				Store:   store,
				Metrics: metrics.New(),
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			logger.Info().
				Str("mode", cfg.GinMode).
				Str("session_store", cfg.SessionStore).
				Msg("Starting members-only server")
			return server.Serve(ctx, bind, router)
		},
	}
}

// setup は設定を読み込み、グローバルロガーも含めて初期化します。
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	log.Logger = logger
	return cfg, logger, nil
}

func newSessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, func(), error) {
	if cfg.SessionStore == config.SessionStoreCookie {
		return cookie.NewStore([]byte(cfg.SessionSecret)), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.SessionRedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid SESSION_REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return session.NewRedisStore(rdb, []byte(cfg.SessionSecret)), func() { _ = rdb.Close() }, nil
}

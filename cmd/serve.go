package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tiksound/application/extraction"
	appretention "tiksound/application/retention"
	"tiksound/domain/retention"
	"tiksound/infrastructure/config"
	"tiksound/infrastructure/logger"
	"tiksound/infrastructure/ratelimit"
	"tiksound/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP extraction service",
	Long: `Start the HTTP API:

  POST /extract              {"url": "<tiktok link>"}
  GET  /download/{filename}  fetch an extracted MP3
  GET  /health               liveness (add ?deep=1 to check yt-dlp and ffmpeg)

The retention sweeper runs in the background and deletes scratch files older
than retention.window. The server shuts down gracefully on SIGINT or SIGTERM.

Example:
  tiksound serve
  PORT=8080 tiksound serve --config /etc/tiksound/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return RunServeWithDependencies(ctx, cfg, NewComponents(cfg, log), log)
}

// RunServeWithDependencies runs the service until ctx is cancelled
func RunServeWithDependencies(ctx context.Context, cfg *config.Config, comps *Components, log *zap.Logger) error {
	if err := comps.Scratch.Ensure(); err != nil {
		return err
	}
	if err := comps.VerifyTools(ctx); err != nil {
		return err
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	policy, err := retention.NewPolicy(cfg.Retention.Window)
	if err != nil {
		return err
	}
	sweeper := appretention.NewSweeper(comps.Scratch, policy,
		appretention.WithInterval(cfg.Retention.Interval),
		appretention.WithLogger(log.Named("retention")),
	)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	opts := []server.Option{
		server.WithPublicBaseURL(cfg.Server.PublicBaseURL),
		server.WithTrustProxy(cfg.Server.TrustProxy),
		server.WithHealthCheck(comps.VerifyTools),
		server.WithTimeouts(server.Timeouts{
			Read:  cfg.Server.ReadTimeout,
			Write: cfg.Server.WriteTimeout,
			Idle:  cfg.Server.IdleTimeout,
		}),
		server.WithLogger(log.Named("http")),
	}
	if limiter != nil {
		opts = append(opts, server.WithLimiter(limiter, cfg.RateLimit.Window))
	}

	svc := comps.Service(extraction.WithLogger(log.Named("pipeline")))
	logger.Info("starting tiksound",
		logger.String("addr", cfg.Server.Addr),
		logger.String("scratch_dir", comps.Scratch.Root()),
		logger.Duration("retention", cfg.Retention.Window),
		logger.Bool("rate_limited", limiter != nil),
	)
	if err := server.New(svc, opts...).ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		logger.Error("http server stopped", logger.ErrorField(err))
		return err
	}
	return nil
}

// newLimiter picks the Redis limiter when an address is configured, otherwise the in-memory one
func newLimiter(ctx context.Context, cfg *config.Config, log *zap.Logger) (ratelimit.Limiter, func(), error) {
	if !cfg.RateLimit.Enabled {
		return nil, func() {}, nil
	}

	if cfg.RateLimit.RedisAddr != "" {
		client, err := ratelimit.NewRedisClient(ctx, ratelimit.RedisConfig{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("rate limiter: %w", err)
		}
		l := ratelimit.NewRedisLimiter(client, cfg.RateLimit.Window)
		log.Info("using redis rate limiter", zap.String("addr", cfg.RateLimit.RedisAddr))
		return l, func() { _ = l.Close() }, nil
	}

	l := ratelimit.NewMemoryLimiter(cfg.RateLimit.Window, ratelimit.WithMemoryLogger(log))
	l.StartJanitor(ctx, 0)
	return l, l.Stop, nil
}

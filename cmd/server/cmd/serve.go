package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventops/server/internal/api"
	"github.com/eventops/server/internal/api/handlers"
	"github.com/eventops/server/internal/app"
	"github.com/eventops/server/internal/auth"
	"github.com/eventops/server/internal/config"
	"github.com/eventops/server/internal/jobs"
	"github.com/eventops/server/internal/metrics"
	"github.com/eventops/server/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	dbCollectInterval   = 15 * time.Second
	bootstrapTimeout    = 10 * time.Second
	riverStopTimeout    = 10 * time.Second
	defaultShutdownWait = 15 * time.Second
)

type serveOptions struct {
	host string
	port int
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the EventOps HTTP server",
		Long: `Start the EventOps HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Connect to PostgreSQL, or run on in-memory storage when DATABASE_URL is empty
- Grant the administrator preset to ADMIN_EMAIL if ADMIN_* env vars are set
- Run the change history retention sweep every 24 hours
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug

  # Start with custom config file
  server serve --config /etc/eventops/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if opts.host != "" {
				cfg.Server.Host = opts.host
			}
			if opts.port != 0 {
				cfg.Server.Port = opts.port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, config.NewLogger(cfg.Logging), nil)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	return cmd
}

// runServer serves until ctx is cancelled, then drains in-flight requests
// and stops the job workers. ln may be nil, in which case cfg.Addr() is
// used.
func runServer(ctx context.Context, cfg config.Config, logger zerolog.Logger, ln net.Listener) error {
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting EventOps server")
	if cfg.UsingDevelopmentSecret {
		logger.Warn().Msg("JWT_SECRET not set; signing sessions with the insecure development secret")
	}

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), riverStopTimeout)
		defer cancel()
		if err := shutdownTracing(stopCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer b.Close()

	svc := app.New(b.repo, serviceOptions(cfg), logger)
	if err := bootstrapAdmin(ctx, cfg, svc, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}

	g, gctx := errgroup.WithContext(ctx)

	if b.pool != nil {
		collector := metrics.NewDBCollector(b.pool)
		g.Go(func() error {
			collector.Start(gctx, dbCollectInterval)
			return nil
		})
		defer collector.Stop()
		logger.Info().Msg("database metrics collector started")
	}

	riverClient, err := startJobs(gctx, g, cfg, b.pool, svc, logger)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(cfg, api.RouterOptions{
		Services:  svc,
		Tokens:    auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenLifetime(), cfg.Auth.Issuer),
		Health:    handlers.NewHealthChecker(b.pool, riverClient, Version, GitCommit),
		Logger:    logger,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	})
	if err != nil {
		return err
	}
	defer router.Close()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	g.Go(func() error {
		var err error
		if ln != nil {
			logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
			err = server.Serve(ln)
		} else {
			logger.Info().Str("addr", server.Addr).Msg("listening")
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		wait := cfg.Server.ShutdownTimeout
		if wait <= 0 {
			wait = defaultShutdownWait
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if riverClient != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), riverStopTimeout)
			defer stopCancel()
			if stopErr := riverClient.Stop(stopCtx); stopErr != nil {
				logger.Error().Err(stopErr).Msg("river workers shutdown error")
			} else {
				logger.Info().Msg("river workers stopped")
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// startJobs runs the retention sweep. On PostgreSQL it is a River periodic
// job; on memory storage a ticker in this process calls the recorder.
func startJobs(ctx context.Context, g *errgroup.Group, cfg config.Config, pool *pgxpool.Pool, svc *app.Services, logger zerolog.Logger) (*river.Client[pgx.Tx], error) {
	if !cfg.Jobs.Enabled {
		logger.Warn().Msg("background jobs disabled; change history will not be pruned automatically")
		return nil, nil
	}

	if pool == nil {
		g.Go(func() error {
			runRetentionLoop(ctx, svc.Recorder, cfg.Jobs.HistoryRetentionPeriod, logger)
			return nil
		})
		return nil, nil
	}

	jobLogger := config.NewSlogLogger(cfg.Logging)
	client, err := jobs.NewClient(
		pool,
		cfg.Jobs,
		jobs.NewWorkers(svc.Recorder, jobLogger),
		jobLogger,
		[]rivertype.Hook{metrics.NewRiverMetricsHook()},
		jobs.NewPeriodicJobs(cfg.Jobs),
	)
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	// Stopped explicitly during shutdown so running sweeps can finish.
	if err := client.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("river workers failed to start: %w", err)
	}
	logger.Info().Int("workers", cfg.Jobs.Workers).Msg("river background job workers started")
	return client, nil
}

// runRetentionLoop sweeps once immediately and then every interval until
// ctx is done.
func runRetentionLoop(ctx context.Context, cleaner jobs.HistoryCleaner, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	sweep := func() {
		start := time.Now()
		deleted, err := cleaner.CleanupExpired(ctx)
		metrics.HistoryCleanupDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.HistoryCleanupErrors.Inc()
			logger.Error().Err(err).Msg("history retention sweep failed")
			return
		}
		logger.Debug().Int64("deleted", deleted).Msg("history retention sweep completed")
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// bootstrapAdmin creates the ADMIN_EMAIL account if needed and grants it
// the administrator preset.
func bootstrapAdmin(ctx context.Context, cfg config.Config, svc *app.Services, logger zerolog.Logger) error {
	if !cfg.AdminBootstrap.Enabled() {
		logger.Debug().Msg("admin bootstrap env vars not fully set; skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	user, created, err := svc.Users.EnsureAdmin(ctx, cfg.AdminBootstrap.Email, cfg.AdminBootstrap.Password)
	if err != nil {
		return err
	}

	event := logger.Info().Str("user_id", user.ID).Bool("created", created)
	// Email is PII; keep it out of production logs.
	if !cfg.IsProduction() {
		event = event.Str("email", user.Email)
	}
	event.Msg("administrator account ready")
	return nil
}

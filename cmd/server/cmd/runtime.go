package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventops/server/internal/app"
	"github.com/eventops/server/internal/config"
	"github.com/eventops/server/internal/storage"
	"github.com/eventops/server/internal/storage/memory"
	"github.com/eventops/server/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var errDatabaseRequired = errors.New("DATABASE_URL is required for this command")

// loadConfig reads the environment and --config, then applies the logging
// flags.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	return cfg, nil
}

// backend is the storage the process runs on. pool is nil for memory
// storage.
type backend struct {
	repo storage.Repository
	pool *pgxpool.Pool
}

func (b backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// openBackend connects to PostgreSQL, or returns fresh in-memory stores when
// no database is configured.
func openBackend(ctx context.Context, cfg config.Config, logger zerolog.Logger) (backend, error) {
	if cfg.UsesMemoryStorage() {
		logger.Warn().Msg("DATABASE_URL not set; using in-memory storage, data is lost on exit")
		return backend{repo: memory.NewRepository()}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.Database.URL, int32(cfg.Database.MaxConnections))
	if err != nil {
		return backend{}, err
	}
	repo, err := postgres.NewRepository(pool, cfg.Database.QueryTimeout)
	if err != nil {
		pool.Close()
		return backend{}, err
	}
	return backend{repo: repo, pool: pool}, nil
}

// servicesOpener is swapped out in tests.
var servicesOpener = openServices

// openServices is used by the maintenance commands. They only make sense
// against a database.
func openServices(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app.Services, backend, error) {
	if cfg.UsesMemoryStorage() {
		return nil, backend{}, errDatabaseRequired
	}
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, backend{}, fmt.Errorf("open database: %w", err)
	}
	return app.New(b.repo, serviceOptions(cfg), logger), b, nil
}

func serviceOptions(cfg config.Config) app.Options {
	return app.Options{
		DefaultPreset:       cfg.Auth.DefaultPreset,
		HistoryWriteTimeout: cfg.History.WriteTimeout,
	}
}

// commandLogger logs to stderr so command output on stdout stays parseable.
func commandLogger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

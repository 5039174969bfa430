// Package bootstrap wires configuration, logging, storage and the monitor
// for the regwatch commands.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/regwatch/internal/config"
	"github.com/jonesrussell/north-cloud/regwatch/internal/logger"
	"github.com/jonesrussell/north-cloud/regwatch/internal/metrics"
	"github.com/jonesrussell/north-cloud/regwatch/internal/store"
)

// ServiceName tags every log line.
const ServiceName = "regwatch"

// Version is overridden at build time with -ldflags "-X ...bootstrap.Version=".
var Version = "dev"

// App holds the long-lived dependencies shared by commands.
type App struct {
	Config  *config.Config
	Log     logger.Logger
	DB      *sqlx.DB
	Store   *store.Store
	Metrics *metrics.Metrics

	closers []func()
}

// Options select how an App is built.
type Options struct {
	ConfigPath string
	Debug      bool
}

// New loads config, creates the logger and connects to Postgres.
func New(ctx context.Context, opts Options) (*App, error) {
	// Phase 1: config and logger
	cfg, err := LoadConfig(opts.ConfigPath, opts.Debug)
	if err != nil {
		return nil, err
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Log: log, Metrics: metrics.New()}
	app.closers = append(app.closers, func() { _ = log.Sync() })

	// Phase 2: database
	db, err := SetupDatabase(ctx, cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.DB = db
	app.Store = store.New(db)
	app.closers = append(app.closers, func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	})

	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// LoadConfig reads the YAML config; debug forces debug logging.
func LoadConfig(path string, debug bool) (*config.Config, error) {
	if path == "" {
		path = config.ConfigPath("config.yml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// CreateLogger builds the service logger. Output goes to stderr so command
// tables on stdout stay clean.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Debug,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(
		logger.String("service", ServiceName),
		logger.String("version", Version),
	), nil
}

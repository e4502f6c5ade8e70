package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/patient-api/internal/config"
	healthHandler "github.com/jwalitptl/patient-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/patient-api/internal/handler/patient"
	"github.com/jwalitptl/patient-api/internal/middleware"
	"github.com/jwalitptl/patient-api/internal/repository"
	"github.com/jwalitptl/patient-api/internal/repository/memory"
	"github.com/jwalitptl/patient-api/internal/repository/postgres"
	"github.com/jwalitptl/patient-api/internal/router"
	"github.com/jwalitptl/patient-api/internal/service/patient"
	"github.com/jwalitptl/patient-api/pkg/messaging"
	"github.com/jwalitptl/patient-api/pkg/messaging/redis"
	"github.com/jwalitptl/patient-api/pkg/metrics"
)

// application owns every long-lived dependency of the HTTP server.
type application struct {
	db       *sqlx.DB
	broker   messaging.Broker
	registry *prometheus.Registry
	router   *router.Router
	logger   zerolog.Logger
}

func newApplication(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*application, error) {
	app := &application{
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := app.openStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	var publisher messaging.Publisher
	if cfg.Redis.Enabled() {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:        cfg.Redis.URL,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		}, &app.logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.broker = broker
		publisher = messaging.NewChannelPublisher(broker, cfg.Redis.Channel)
	}

	m := metrics.New(cfg.Metrics.Namespace, app.registry)
	patientService := patient.NewService(store, publisher, m)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowOrigins
	}

	securityConfig := middleware.DefaultSecurityConfig()
	securityConfig.HSTSMaxAge = cfg.Server.HSTSMaxAge

	app.router = router.NewRouter(
		healthHandler.NewHandler(store),
		patientHandler.NewHandler(patientService),
		m,
		app.registry,
		logger,
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        cfg.RateLimit.RPS,
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       corsConfig,
			SecurityConfig:   securityConfig,
			MaxBodyBytes:     cfg.Server.MaxBodyBytes,
			RequestTimeout:   cfg.Server.RequestTimeout,
		},
	)
	app.router.Setup()
	return app, nil
}

func (a *application) openStore(ctx context.Context, cfg *config.Config) (repository.PatientStore, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		store := memory.NewStore()
		if cfg.Database.SeedFile != "" {
			n, err := store.LoadSeedFile(ctx, cfg.Database.SeedFile)
			if err != nil {
				return nil, err
			}
			a.logger.Info().Int("patients", n).Str("file", cfg.Database.SeedFile).Msg("Seeded memory store")
		}
		return store, nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.registry.MustRegister(collectors.NewDBStatsCollector(db.DB, cfg.Database.Name))

		if cfg.Database.AutoMigrate {
			migrations, err := postgres.LoadMigrations()
			if err != nil {
				return nil, err
			}
			if _, err := postgres.NewMigrator(db, migrations).Up(ctx); err != nil {
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		return postgres.NewPatientStore(db), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

func (a *application) Close() {
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close broker")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database")
		}
	}
}

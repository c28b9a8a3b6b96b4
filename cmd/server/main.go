package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/briar/config"
	askrepo "github.com/Ramsey-B/briar/internal/repositories/ask"
	bidrepo "github.com/Ramsey-B/briar/internal/repositories/bid"
	"github.com/Ramsey-B/briar/internal/repositories/contactreveal"
	"github.com/Ramsey-B/briar/internal/repositories/profile"
	relrepo "github.com/Ramsey-B/briar/internal/repositories/relationship"
	"github.com/Ramsey-B/briar/pkg/auction"
	"github.com/Ramsey-B/briar/pkg/clock"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/middleware"
	"github.com/Ramsey-B/briar/pkg/redis"
	"github.com/Ramsey-B/briar/pkg/relationship"
	askroutes "github.com/Ramsey-B/briar/pkg/routes/ask"
	bidroutes "github.com/Ramsey-B/briar/pkg/routes/bid"
	"github.com/Ramsey-B/briar/pkg/routes/health"
	relroutes "github.com/Ramsey-B/briar/pkg/routes/relationship"
	"github.com/Ramsey-B/briar/pkg/startup"
	"github.com/Ramsey-B/briar/pkg/sweeper"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/Ramsey-B/briar/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger := newLogger(cfg)

	shutdownTracing, err := setupTracing(cfg)
	if err != nil {
		fatal(logger, err, "Failed to set up tracing")
	}
	defer shutdownTracing()

	// Database
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
		cfg.DatabaseName, cfg.DatabaseSSLMode)
	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		fatal(logger, err, "Failed to connect to database")
	}
	db := database.NewDatabaseInstance(sqlxDB, logger)
	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
	if err != nil {
		fatal(logger, err, "Failed to create migration driver")
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
		fatal(logger, err, "Failed to run migrations")
	}

	// Redis
	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		fatal(logger, err, "Failed to connect to Redis")
	}
	locker := redis.NewLocker(redisClient, "briar:lock:")
	statsCache := redis.NewCache(redisClient, "briar:", time.Duration(cfg.StatisticsCacheTTLSeconds)*time.Second)

	// Events
	origin := uuid.New().String()
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaEventsTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	hub := events.NewHub()
	emitter := events.NewEmitter(producer, hub, origin, logger)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		// Per-instance group so every instance sees the full stream for its
		// local watchers.
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaEventsTopic,
			ConsumerGroup: fmt.Sprintf("%s-%s", cfg.KafkaConsumerGroup, origin),
		}, logger, events.Relay(hub, origin))
	}

	// Repositories
	asks := askrepo.NewRepository(db, logger)
	bids := bidrepo.NewRepository(db, logger)
	rels := relrepo.NewRepository(db, logger)
	reveals := contactreveal.NewRepository(db, logger)
	profiles := profile.NewRepository(db, logger)

	// Engines
	former := relationship.NewFormer(rels, logger)
	clk := clock.New()
	ledger := auction.NewLedger(asks, bids, locker, statsCache, auction.NewExtender(), clk, emitter, logger, auction.LedgerConfig{
		MustBeatLowest: cfg.BidMustBeatLowest,
	})
	acceptance := auction.NewAcceptance(asks, bids, rels, reveals, profiles, former, locker, statsCache, emitter, logger)
	sweep := sweeper.New(asks, rels, locker, clk, emitter, logger, sweeper.Config{
		Interval:        time.Duration(cfg.SweepIntervalSeconds) * time.Second,
		BatchSize:       cfg.SweepBatchSize,
		ArchiveCooldown: time.Duration(cfg.ArchiveCooldownHours) * time.Hour,
	})

	// Dependency injection for route handlers. Handlers resolve from the
	// default container, so no per-request container middleware is needed.
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		fatal(logger, err, "Failed to create DI container")
	}
	mustRegister(logger, ectoinject.RegisterInstance[*askrepo.Repository](container, asks))
	mustRegister(logger, ectoinject.RegisterInstance[*bidrepo.Repository](container, bids))
	mustRegister(logger, ectoinject.RegisterInstance[*relrepo.Repository](container, rels))
	mustRegister(logger, ectoinject.RegisterInstance[*contactreveal.Repository](container, reveals))
	mustRegister(logger, ectoinject.RegisterInstance[*events.Emitter](container, emitter))
	mustRegister(logger, ectoinject.RegisterInstance[*events.Hub](container, hub))
	mustRegister(logger, ectoinject.RegisterInstance[*auction.Ledger](container, ledger))
	mustRegister(logger, ectoinject.RegisterInstance[*auction.Acceptance](container, acceptance))

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.HTTPErrorHandler = middleware.Error(logger)

	askGroup := e.Group("/api/v1/asks")
	askroutes.Register(askGroup)
	bidroutes.Register(askGroup)
	relroutes.Register(e.Group("/api/v1/relationships"))

	checker := health.NewChecker(db, redisClient, cfg.Version)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Orchestrated startup
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&funcDep{
		name:  "database",
		start: func(ctx context.Context) error { return db.PingContext(ctx) },
		stop:  func(ctx context.Context) error { return db.Close() },
	})
	boot.AddDependency(&funcDep{
		name:  "redis",
		start: func(ctx context.Context) error { return redisClient.Ping(ctx) },
		stop:  func(ctx context.Context) error { return redisClient.Close() },
	})
	boot.AddDependency(&funcDep{
		name: "kafka-producer",
		stop: func(ctx context.Context) error { return producer.Close() },
	})
	if consumer != nil {
		boot.AddDependency(&funcDep{
			name:      "kafka-consumer",
			dependsOn: []string{"kafka-producer"},
			start:     consumer.Start,
			stop:      func(ctx context.Context) error { return consumer.Stop() },
		})
	}
	boot.AddDependency(sweep)
	boot.AddDependency(&funcDep{
		name:      "http-server",
		dependsOn: []string{"database", "redis", "kafka-producer"},
		start: func(ctx context.Context) error {
			go func() {
				if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
					fatal(logger, err, "HTTP server failed")
				}
			}()
			logger.Infof("Listening on :%d", cfg.Port)
			return nil
		},
		stop: func(ctx context.Context) error { return e.Shutdown(ctx) },
	})

	ctx := context.Background()
	if err := boot.Start(ctx); err != nil {
		fatal(logger, err, "Startup failed")
	}
	checker.SetReady(true)
	logger.Infof("%s started", cfg.AppName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapConfig := zap.NewProductionConfig()
		if level, parseErr := zap.ParseAtomicLevel(cfg.LogLevel); parseErr == nil {
			zapConfig.Level = level
		}
		zapLogger, err = zapConfig.Build()
	}
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func setupTracing(cfg config.Config) (func(), error) {
	exporter, err := exporters.NewConsoleExporter()
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}

func mustRegister(logger ectologger.Logger, err error) {
	if err != nil {
		fatal(logger, err, "Failed to register dependency")
	}
}

func fatal(logger ectologger.Logger, err error, msg string) {
	logger.WithError(err).Error(msg)
	os.Exit(1)
}

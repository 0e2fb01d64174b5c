package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/givestack/donorid/config"
	"github.com/givestack/donorid/internal/handlers"
	candidaterepo "github.com/givestack/donorid/internal/repositories/candidate"
	dependentrepo "github.com/givestack/donorid/internal/repositories/dependent"
	donationrepo "github.com/givestack/donorid/internal/repositories/donation"
	donorrepo "github.com/givestack/donorid/internal/repositories/donor"
	"github.com/givestack/donorid/pkg/database"
	"github.com/givestack/donorid/pkg/dedup"
	"github.com/givestack/donorid/pkg/health"
	"github.com/givestack/donorid/pkg/matching"
	"github.com/givestack/donorid/pkg/middleware"
	"github.com/givestack/donorid/pkg/resolution"
	"github.com/givestack/donorid/pkg/startup"
	"github.com/givestack/donorid/pkg/tracing"
	"github.com/givestack/donorid/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Errorf("failed to bind config: %w", err))
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to build zap logger: %w", err))
	}
	defer zapLogger.Sync()

	logger := ectologger.NewEctoLogger(func(m ectologger.EctoLogMessage) {
		b, err := json.Marshal(m)
		if err != nil {
			zapLogger.Error("failed to encode log message", zap.Error(err))
			return
		}
		zapLogger.Info(string(b))
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.TracingEnabled {
		shutdown, err := initTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize tracing")
			os.Exit(1)
		}
		defer shutdown(context.Background())
	}

	app := &application{cfg: cfg, logger: logger}

	manager := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	manager.AddDependency(&databaseDependency{app: app})
	manager.AddDependency(&migrationDependency{app: app})
	manager.AddDependency(&serverDependency{app: app})

	if err := manager.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := manager.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Shutdown failed")
		os.Exit(1)
	}
}

type application struct {
	cfg     config.Config
	logger  ectologger.Logger
	db      database.DB
	sqlxDB  *sqlx.DB
	echo    *echo.Echo
	checker *health.Checker
}

type databaseDependency struct {
	app *application
}

func (d *databaseDependency) GetName() string     { return "database" }
func (d *databaseDependency) DependsOn() []string { return nil }

func (d *databaseDependency) Start(ctx context.Context) error {
	cfg := d.app.cfg
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)

	db, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	d.app.sqlxDB = db
	d.app.db = database.NewDatabaseInstance(db, d.app.logger)
	return nil
}

func (d *databaseDependency) Stop(ctx context.Context) error {
	if d.app.sqlxDB == nil {
		return nil
	}
	return d.app.sqlxDB.Close()
}

type migrationDependency struct {
	app *application
}

func (d *migrationDependency) GetName() string     { return "migrations" }
func (d *migrationDependency) DependsOn() []string { return []string{"database"} }

func (d *migrationDependency) Start(ctx context.Context) error {
	cfg := d.app.cfg

	driver, err := postgres.WithInstance(d.app.sqlxDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	ms := database.NewMigrationService(d.app.logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
	})

	return ms.Migrate(cfg.DatabaseName, driver)
}

func (d *migrationDependency) Stop(ctx context.Context) error { return nil }

type serverDependency struct {
	app *application
}

func (d *serverDependency) GetName() string     { return "http-server" }
func (d *serverDependency) DependsOn() []string { return []string{"database", "migrations"} }

func (d *serverDependency) Start(ctx context.Context) error {
	app := d.app
	cfg := app.cfg
	logger := app.logger

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	donors := donorrepo.NewRepository(app.db, logger)
	donations := donationrepo.NewRepository(app.db, logger)
	candidates := candidaterepo.NewRepository(app.db, logger)
	dependents := dependentrepo.NewRepository(app.db, logger)

	matcher := matching.NewMatcher(donors, donations, candidates, matching.Options{
		NameSimilarityThreshold:    cfg.NameSimilarityThreshold,
		AddressSimilarityThreshold: cfg.AddressSimilarityThreshold,
		CandidateLimit:             cfg.CandidateLimit,
	}, logger)
	batchResolver := matching.NewBatchResolver(app.db, donations, matcher, logger)

	queue := resolution.NewQueue(donations, candidates, donors, logger)
	resolver := resolution.NewResolver(app.db, donations, donors, candidates, logger)

	scanner := dedup.NewScanner(donors, logger)
	merger := dedup.NewMerger(app.db, donors, donations, candidates, dependents, logger)
	lookup := dedup.NewLookup(donors, matching.NewTrigramScorer(), cfg.DuplicateLookupLimit, logger)

	api := e.Group("/api/v1")
	handlers.NewResolutionHandler(queue, resolver, logger).RegisterRoutes(api.Group("/resolution-queue"))
	handlers.NewDedupHandler(scanner, merger, logger).RegisterRoutes(api.Group("/deduplicate"))
	handlers.NewLookupHandler(lookup, logger).RegisterRoutes(api.Group("/lookup"))
	handlers.NewBatchHandler(batchResolver, logger).RegisterRoutes(api.Group("/batches"))

	app.checker = health.NewChecker(app.db, cfg.Version)
	app.checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	app.echo = e

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()

	app.checker.SetReady(true)
	logger.WithField("port", cfg.Port).Infof("%s listening on port %d", cfg.AppName, cfg.Port)
	return nil
}

func (d *serverDependency) Stop(ctx context.Context) error {
	if d.app.checker != nil {
		d.app.checker.SetReady(false)
	}
	if d.app.echo == nil {
		return nil
	}
	return d.app.echo.Shutdown(ctx)
}

func initTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingOTLPInsecure,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	return tp.Shutdown, nil
}

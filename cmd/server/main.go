package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/config"
	"github.com/martforge/martforge-api/internal/connectors"
	"github.com/martforge/martforge-api/internal/database"
	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/etl/jobs"
	"github.com/martforge/martforge-api/internal/handlers"
	"github.com/martforge/martforge-api/internal/middleware"
	"github.com/martforge/martforge-api/internal/migration"
	"github.com/martforge/martforge-api/internal/notification"
	"github.com/martforge/martforge-api/internal/registry"
	"github.com/martforge/martforge-api/internal/repository"
	"github.com/martforge/martforge-api/internal/routes"
	"github.com/martforge/martforge-api/internal/scheduler"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type application struct {
	config        *config.Config
	db            *sql.DB
	logger        zerolog.Logger
	notifications notification.Service
	orchestrator  *etl.Orchestrator
	catalog       []etl.JobDefinition
	scheduler     *scheduler.Scheduler
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	goose.SetLogger(migration.NewGooseAdapter(logger))

	// Load configuration.
	cfg := config.Load()

	// Initialize mart database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Notification service: persisted events plus the ops email channel when
	// SMTP is configured.
	notificationRepo := repository.NewNotificationRepository(db)
	var notifiers []notification.Notifier
	if cfg.Email.SMTPHost != "" {
		emailNotifier, err := notification.NewEmailNotifier(cfg.Email, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure email notifier")
		}
		notifiers = append(notifiers, emailNotifier)
	}
	notificationService := notification.NewService(notificationRepo, logger, notifiers...)

	app := &application{
		config:        cfg,
		db:            db,
		logger:        logger,
		notifications: notificationService,
	}

	// Wire the ETL pipeline: registry, runner, orchestrator, job catalog.
	app.initPipeline(logger)

	// Start the scheduler for the recurring passes.
	app.scheduler = scheduler.New(app.orchestrator, app.catalog, notificationService, logger)
	if err := app.scheduler.Register(cfg.Schedule); err != nil {
		logger.Fatal().Err(err).Msg("failed to register schedules")
	}
	app.scheduler.Start()

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.Logging(logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initPipeline builds everything between the tenant registry and the job
// catalog.
func (app *application) initPipeline(logger zerolog.Logger) {
	orgRepo := repository.NewOrganizationRepository(app.db)
	logRepo := repository.NewETLLogRepository(app.db)

	tenants := registry.New(orgRepo, app.config.Source, app.config.ETL.FallbackTenants, logger)

	mart := database.NewMartStore(app.db)
	runner := etl.NewRunner(mart, logRepo, logger).
		WithFailureListener(notification.NewFailureAlerter(app.notifications))

	app.orchestrator = etl.NewOrchestrator(tenants, runner, logger)

	deps := jobs.CatalogDeps{
		SalesWindowDays:      app.config.ETL.SalesWindowDays,
		CashFlowWindowMonths: app.config.ETL.CashFlowWindowMonths,
	}
	if app.config.HubSpot.Token != "" {
		deps.Deals = connectors.NewHubSpotClient(app.config.HubSpot, logger)
	}
	if app.config.QuickBooks.Token != "" {
		deps.Finance = connectors.NewQuickBooksClient(app.config.QuickBooks, logger)
	}
	if app.config.Zoom.Token != "" {
		deps.Meetings = connectors.NewZoomClient(app.config.Zoom, logger)
	}
	if app.config.BigQuery.ProjectID != "" {
		bq, err := connectors.NewBigQueryClient(context.Background(), app.config.BigQuery)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create BigQuery client")
		}
		deps.AppEvents = bq
	}

	app.catalog = jobs.Catalog(deps)
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	orgRepo := repository.NewOrganizationRepository(app.db)
	logRepo := repository.NewETLLogRepository(app.db)

	authHandler := handlers.NewAuthHandler(app.db, app.config, logger)
	etlHandler := handlers.NewETLHandler(app.orchestrator, app.scheduler, app.catalog, logRepo, logger)
	orgHandler := handlers.NewOrganizationHandler(orgRepo, logger)
	notificationHandler := handlers.NewNotificationHandler(app.notifications, logger)
	healthHandler := handlers.NewHealthHandler(app.db)

	return routes.NewRouter(authHandler, etlHandler, orgHandler, notificationHandler, healthHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Let any in-flight ETL pass finish before exiting.
	logger.Info().Msg("Stopping scheduler...")
	<-app.scheduler.Stop().Done()
	logger.Info().Msg("Scheduler stopped.")
}

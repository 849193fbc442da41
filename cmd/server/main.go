/**
 * @description
 * This is the main entry point for the back-office service. Its responsibility
 * is to initialize all components and start the HTTP server.
 *
 * Key features:
 * - Loads application configuration from environment variables.
 * - Establishes and manages a connection pool to the PostgreSQL database.
 * - Verifies the database schema once at startup and fails fast if absent.
 * - Initializes the identity provider and card issuer clients.
 * - Wires up the provisioning orchestrator with its dependencies.
 * - Starts the remediation sweep and implements graceful shutdown.
 *
 * @dependencies
 * - The service's internal packages for config, app logic, storage, and external clients.
 * - pgxpool for database connection, godotenv for local config, and rabbitmq for messaging.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/harborbank/backoffice/internal/api"
	"github.com/harborbank/backoffice/internal/app"
	"github.com/harborbank/backoffice/internal/config"
	"github.com/harborbank/backoffice/internal/store"
	"github.com/harborbank/backoffice/pkg/cardclient"
	"github.com/harborbank/backoffice/pkg/identityclient"
	"github.com/harborbank/backoffice/pkg/localidp"
	"github.com/harborbank/backoffice/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	// Establish database connection pool.
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to parse database URL: %v\n", err)
	}
	dbConfig.MaxConns = 50
	dbConfig.MinConns = 5
	dbConfig.MaxConnLifetime = 30 * time.Minute
	dbConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer dbpool.Close()
	log.Println("Database connection established")

	// Schema is verified once here, never per request.
	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.VerifySchema(verifyCtx, dbpool); err != nil {
		cancelVerify()
		log.Fatalf("Schema verification failed: %v", err)
	}
	cancelVerify()
	log.Println("Schema verified")

	// Set up repositories.
	profileRepo := store.NewPostgresProfileRepository(dbpool)
	accountRepo := store.NewPostgresAccountRepository(dbpool)
	cardRepo := store.NewPostgresCardRepository(dbpool)

	// Identity provider: hosted by default, local Postgres-backed for dev.
	var identity app.IdentityProvider
	if cfg.IdentityProvider == "local" {
		identity = localidp.NewProvider(dbpool)
		log.Println("Using local identity provider")
	} else {
		identity = identityclient.NewClient(cfg.IdentityAPIBaseURL, cfg.IdentityAPIKey)
	}

	cardIssuer := cardclient.NewClient(cfg.CardIssuerBaseURL, cfg.CardIssuerAPIKey)

	// Event producer; fall back to a no-op publisher if the broker is down so
	// provisioning keeps working.
	var publisher rabbitmq.Publisher
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("WARN: RabbitMQ unavailable, events will be logged only: %v", err)
		publisher = &rabbitmq.NoopProducer{}
	} else {
		publisher = producer
	}
	defer publisher.Close()

	provisioner := app.NewProvisioner(profileRepo, accountRepo, cardRepo, identity, cardIssuer, publisher)

	// Remediation sweep for profiles whose account setup never completed.
	sweep := app.NewRemediationSweep(accountRepo, cfg.RemediationSchedule)
	if err := sweep.Start(); err != nil {
		log.Fatalf("Failed to schedule remediation sweep: %v", err)
	}

	// Setup and start HTTP server.
	router := api.NewRouter(cfg,
		api.NewProvisionHandler(provisioner),
		api.NewCustomerHandler(profileRepo, accountRepo, cardRepo),
	)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %s\n", err)
		}
	}()

	// Wait for termination signal for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down back-office service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-sweep.Stop().Done()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}

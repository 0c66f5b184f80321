package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "loan-engine/docs"
	"loan-engine/internal/api"
	"loan-engine/internal/batch"
	"loan-engine/internal/config"
	"loan-engine/internal/domain/customer"
	"loan-engine/internal/domain/loan"
	"loan-engine/internal/event"
	"loan-engine/internal/infrastructure/cache"
	"loan-engine/internal/infrastructure/database/postgres"
	"loan-engine/internal/infrastructure/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	defaultDelinquencySchedule = "0 2 * * *"
	defaultDelinquencyTimeout  = time.Hour
	rabbitMQDialAttempts       = 5
)

// @title Loan Engine API
// @version 1.0
// @description Loan origination, amortization schedules, waterfall repayments and delinquency tracking.

// @contact.name API Support
// @contact.email support@loan-engine.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	dbPool := initializeDatabase(cfg, logger)
	defer closeDatabase(dbPool, logger)

	redisClient := initializeRedisClient(cfg, logger)
	rabbitConn := setupRabbitMQ(cfg, logger)
	publisher := initializePublisher(cfg, rabbitConn, logger)

	loanService, customerService, loanRepo := initializeServices(cfg, dbPool, publisher, logger)

	updateJob := batch.NewUpdateDelinquencyJob(loanRepo, loanService, cfg.Batch.Concurrency, logger)
	cronScheduler := startBatchJobs(cfg, logger, updateJob)

	router := api.SetupRouter(loanService, customerService, cfg, redisClient, logger)
	metricsSrv := startMetricsServer(cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)

	shutdownMetricsServer(metricsSrv, logger)
	closeRabbitMQConnection(rabbitConn, logger)
	closeRedisClient(redisClient, logger)
	logger.Info("Application shut down complete.")
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

func initializeRedisClient(cfg *config.Config, logger *slog.Logger) *redis.Client {
	client, err := cache.NewRedisClient(context.Background(), cfg.Redis, logger)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err, "addr", cfg.Redis.Addr)
		os.Exit(1)
	}
	return client
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient == nil {
		logger.Info("Redis client was not initialized, skipping close.")
		return
	}
	logger.Info("Closing Redis client connection...")
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client connection gracefully", "error", err)
		return
	}
	logger.Info("Redis client connection closed.")
}

func setupRabbitMQ(cfg *config.Config, logger *slog.Logger) *amqp.Connection {
	if !cfg.RabbitMQ.Enabled {
		logger.Info("RabbitMQ disabled via configuration, domain events will be dropped.")
		return nil
	}
	if cfg.RabbitMQ.URL == "" {
		logger.Error("RabbitMQ is enabled but rabbitmq.url is not configured")
		os.Exit(1)
	}

	conn, err := connectRabbitMQ(cfg.RabbitMQ.URL, rabbitMQDialAttempts, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	return conn
}

func connectRabbitMQ(uri string, attempts int, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 1; i <= attempts; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking, 1))
				closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ connection blocked", "reason", b.Reason)
				case e := <-closeChan:
					if e != nil {
						logger.Error("RabbitMQ connection closed", slog.Any("error", e))
					}
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", attempts),
			slog.Any("error", err),
		)
		if i < attempts {
			time.Sleep(time.Duration(i*2) * time.Second)
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	switch {
	case rabbitConn == nil:
		logger.Info("RabbitMQ connection was not established, skipping close.")
	case rabbitConn.IsClosed():
		logger.Info("RabbitMQ connection already closed, skipping close.")
	default:
		logger.Info("Closing RabbitMQ connection...")
		if err := rabbitConn.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
			return
		}
		logger.Info("RabbitMQ connection closed.")
	}
}

func initializePublisher(cfg *config.Config, rabbitConn *amqp.Connection, logger *slog.Logger) event.EventPublisher {
	if rabbitConn == nil {
		return event.NoopPublisher{}
	}
	pub, err := event.NewRabbitMQEventPublisher(rabbitConn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to initialize RabbitMQ event publisher", "error", err)
		os.Exit(1)
	}
	return pub
}

func initializeServices(cfg *config.Config, dbPool *pgxpool.Pool, pub event.EventPublisher, logger *slog.Logger) (loan.LoanService, customer.CustomerService, *postgres.LoanRepository) {
	logger.Info("Initializing application components...")

	feePercent, err := cfg.Loan.FeePercent()
	if err != nil {
		logger.Error("Invalid loan configuration", "error", err)
		os.Exit(1)
	}

	loanRepo := postgres.NewLoanRepository(dbPool, logger)
	customerRepo := postgres.NewCustomerRepository(dbPool, logger)

	customerService := customer.NewCustomerService(customerRepo, pub, logger)
	loanService := loan.NewLoanService(loanRepo, customerService, pub, loan.Config{UpfrontFeePercent: feePercent}, logger)

	return loanService, customerService, loanRepo
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

// startMetricsServer exposes Prometheus on its own port so scrapes bypass the
// API middleware. Returns nil when the port is unset or shared with the API.
func startMetricsServer(cfg *config.Config, logger *slog.Logger) *http.Server {
	if cfg.Metrics.Port <= 0 || cfg.Metrics.Port == cfg.Server.Port {
		return nil
	}
	path := cfg.Metrics.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", "port", cfg.Metrics.Port, "path", path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Metrics server shutdown failed", "error", err)
	}
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		triggerReason = "server exited"
		logger.Info("Server goroutine finished before signal.")
		serverErrors = nil
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	if serverErrors == nil {
		return
	}
	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, updateJob *batch.UpdateDelinquencyJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.DelinquencyUpdateSchedule
	if scheduleSpec == "" {
		scheduleSpec = defaultDelinquencySchedule
		logger.Warn("Batch delinquency update schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.DelinquencyUpdateTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultDelinquencyTimeout
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "DelinquencyUpdate")
		jobLogger.Info("Cron triggered: Running delinquency update job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := updateJob.Run(ctx); runErr != nil {
			jobLogger.Error("Delinquency update job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Delinquency update job finished successfully.")
		}
	}))
	if err != nil {
		logger.Error("Failed to schedule delinquency update job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled delinquency update job", "schedule", scheduleSpec, "job_id", jobID, "timeout", jobTimeout)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func setupLogger(cfg config.LoggerConfig) *slog.Logger {
	return logging.NewLogger(cfg)
}

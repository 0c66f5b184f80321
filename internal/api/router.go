package api

import (
	"log/slog"
	"net/http"
	"time"

	_ "loan-engine/docs"
	"loan-engine/internal/api/handler"
	mw "loan-engine/internal/api/middleware"
	"loan-engine/internal/config"
	"loan-engine/internal/domain/customer"
	"loan-engine/internal/domain/loan"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const requestTimeout = 60 * time.Second

// SetupRouter wires the HTTP surface. redisClient may be nil, in which case
// rate limiting runs in memory and idempotency keys are not checked.
func SetupRouter(loanService loan.LoanService, customerService customer.CustomerService, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, redisClient, logger)
	setupMetricsEndpoint(router, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	loanHandler := handler.NewLoanHandler(loanService, logger)
	setupAuthRoutes(router, cfg, logger)
	setupCustomerRoutes(router, cfg, customerService, loanHandler, logger)
	setupLoanRoutes(router, cfg, loanHandler, idempotencyReserver(redisClient), logger)

	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, redisClient, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func idempotencyReserver(redisClient *redis.Client) mw.KeyReserver {
	if redisClient == nil {
		return nil
	}
	return mw.NewRedisKeyReserver(redisClient)
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(cfg.Server.Auth, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})
}

func setupCustomerRoutes(router *chi.Mux, cfg *config.Config, svc customer.CustomerService, loans *handler.LoanHandler, logger *slog.Logger) {
	h := handler.NewCustomerHandler(svc, logger)

	router.Route("/customers", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateCustomer)
		r.Get("/", h.ListCustomers)
		r.Route("/{customerID}", func(r chi.Router) {
			r.Get("/", h.GetCustomer)
			r.Delete("/", h.DeactivateCustomer)
			r.Put("/address", h.UpdateCustomerAddress)
			r.Put("/reactivate", h.ReactivateCustomer)
			r.Get("/loans", loans.ListCustomerLoans)
		})
	})
}

func setupLoanRoutes(router *chi.Mux, cfg *config.Config, h *handler.LoanHandler, reserver mw.KeyReserver, logger *slog.Logger) {
	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/preview", h.PreviewSchedule)
		r.Post("/", h.CreateLoan)
		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", h.GetLoan)
			r.Get("/schedule", h.GetSchedule)
			r.Post("/disburse", h.DisburseLoan)
			r.Get("/balances", h.GetBalances)
			r.Post("/charges", h.AssessCharge)
			r.Get("/payments", h.ListPayments)
			r.With(mw.Idempotency(reserver, cfg.Redis.IdempotencyTTL, logger)).Post("/payments", h.RecordPayment)
			r.Get("/delinquency", h.RefreshDelinquency)
		})
	})
}

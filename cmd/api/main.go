package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebook/carebook/internal/api/router"
	"github.com/carebook/carebook/internal/appointments"
	"github.com/carebook/carebook/internal/booking"
	appconfig "github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/doctors"
	"github.com/carebook/carebook/internal/observability/metrics"
	"github.com/carebook/carebook/internal/patients"
	"github.com/carebook/carebook/internal/payments"
	"github.com/carebook/carebook/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting carebook API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Repositories. Without DATABASE_URL everything runs in memory, which is
	// the dev and demo configuration.
	var (
		doctorRepo      doctors.Repository
		patientRepo     patients.Repository
		appointmentRepo appointments.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		doctorRepo = doctors.NewPostgresRepository(pool)
		patientRepo = patients.NewPostgresRepository(pool)
		appointmentRepo = appointments.NewPostgresRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		doctorRepo = doctors.NewInMemoryRepository()
		patientRepo = patients.NewInMemoryRepository()
		appointmentRepo = appointments.NewInMemoryRepository()
	}

	// Optional redis cache in front of the doctor directory.
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, doctor cache disabled", "error", err)
		} else {
			doctorRepo = doctors.NewCachedRepository(doctorRepo, client, cfg.DoctorCacheTTL)
		}
	}

	registry := payments.NewRegistry(payments.Config{
		RazorpayKeyID:     cfg.RazorpayKeyID,
		RazorpayKeySecret: cfg.RazorpayKeySecret,
		StripeSecretKey:   cfg.StripeSecretKey,
		StripeSuccessURL:  cfg.StripeSuccessURL,
		StripeCancelURL:   cfg.StripeCancelURL,
	}, logger)

	promRegistry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(promRegistry)

	svc := booking.NewService(
		doctorRepo,
		patientRepo,
		appointmentRepo,
		registry,
		bookingMetrics,
		logger,
		cfg.PaymentOrderAttempts,
	)
	svc.SetOrderTimeout(cfg.PaymentOrderTimeout)

	r := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     booking.NewHandler(svc, logger),
		DoctorsHandler:     doctors.NewHandler(doctorRepo, logger),
		MetricsHandler:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		UserJWTSecret:      cfg.UserJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

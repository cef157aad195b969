package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/rates"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := cli.OpenBackend(ctx, cfg, logger)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	// A typed nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.Publisher
	if res.AMQP != nil {
		publisher = res.AMQP
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	authSvc := auth.NewService(res.Store, tokens, logger)
	txSvc := services.NewTransactionService(res.Store, res.Store, publisher, logger)
	profileSvc := services.NewProfileService(res.Store, logger)
	dashboardSvc := services.NewDashboardService(res.Store, res.Store, cfg.DefaultCurrency, logger)

	rateClient := rates.NewClient(rates.Options{
		BaseURL:  cfg.RatesBaseURL,
		Timeout:  cfg.RatesTimeout,
		CacheTTL: cfg.RatesCacheTTL,
		Logger:   logger,
	})
	caches := cache.NewManager(logger)
	caches.Register(rateClient.Cache())
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		DefaultCurrency:    cfg.DefaultCurrency,
	}, apphttp.Deps{
		Auth:         authSvc,
		Tokens:       tokens,
		Transactions: txSvc,
		Profiles:     profileSvc,
		Dashboard:    dashboardSvc,
		Rates:        rateClient,
		Ready:        res.Store,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		logger.Info("Server starting",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", cfg.AMQPEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err)
			cancel()
		}
	}()

	if sig := cli.WaitForSignal(ctx); sig != nil {
		logger.Info("Received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	if err := txSvc.Close(); err != nil {
		logger.Error("Failed to close transaction service", log.FieldError, err)
	}
	logger.Info("Server stopped")
}

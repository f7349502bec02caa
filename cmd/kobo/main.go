package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"kobo/internal/amqp"
	"kobo/internal/cli"
	"kobo/internal/core"
	"kobo/internal/gateway"
	apphttp "kobo/internal/http"
	klog "kobo/internal/log"
	"kobo/internal/session"
	"kobo/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), klog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)

	opts := []gateway.Option{
		gateway.WithLogger(logger.With(klog.FieldComponent, klog.ComponentGateway)),
		gateway.WithOverrideTolerance(cfg.OverrideMatchTolerance),
	}

	// Events are optional. Without a broker the API runs and nothing is
	// mirrored.
	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, events disabled", "error", err)
		} else {
			publisher = c
			opts = append(opts, gateway.WithPublisher(c))
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	}

	gw := gateway.New(res.Store, opts...)
	settings := session.NewSettingsService(res.Store, time.Now)
	gate := session.NewGate(settings, cfg.SessionTTL)
	monitor := session.NewMonitor(gate, cfg.SessionCheckInterval, func(a core.AccountID) {
		logger.Info("Session expired, PIN required", klog.FieldAccountID, string(a))
	})
	monitor.Start()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Gateway:   gw,
		Navigator: gateway.NewNavigator(gw),
		Settings:  settings,
		Gate:      gate,
		Monitor:   monitor,
		Logger:    logger,
		Ready: func(ctx context.Context) error {
			_, err := res.Store.GetSettings(ctx, "readiness-probe")
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		},
	}, apphttp.Options{
		CacheSize:            cfg.CacheSize,
		CacheTTL:             cfg.CacheTTL,
		RequestsPerMinute:    cfg.RateLimitPerMinute,
		PINAttemptsPerMinute: cfg.PINAttemptsPerMinute,
		AllowedOrigins:       cfg.CORSAllowedOrigins,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		monitor.Stop()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		closeBackend(logger, res.Cleanup)
	})

	logger.Info("Starting kobo server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

func closeBackend(logger *slog.Logger, cleanup func() error) {
	if cleanup == nil {
		return
	}
	if err := cleanup(); err != nil {
		logger.Warn("Backend cleanup error", "error", err)
	}
}

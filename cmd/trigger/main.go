package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/nga-flood-trigger/internal/adapter/google"
	httpadapter "github.com/couchcryptid/nga-flood-trigger/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/nga-flood-trigger/internal/adapter/kafka"
	"github.com/couchcryptid/nga-flood-trigger/internal/adapter/store"
	"github.com/couchcryptid/nga-flood-trigger/internal/config"
	"github.com/couchcryptid/nga-flood-trigger/internal/observability"
	"github.com/couchcryptid/nga-flood-trigger/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()
	if err := st.Init(ctx); err != nil {
		return err
	}
	logger.Info("store ready", "driver", cfg.StoreDriver)

	// Google gauge forecasts are feature-flagged via GOOGLE_API_KEY.
	var fetchers []pipeline.ForecastFetcher
	if cfg.GoogleEnabled {
		client := google.NewClient(cfg.GoogleAPIKey, cfg.GoogleGaugeID, cfg.GoogleTimeout, metrics, logger)
		fetchers = append(fetchers, google.NewCachedClient(client, cfg.GoogleCacheSize, metrics))
		logger.Info("google forecasts enabled", "gauge_id", cfg.GoogleGaugeID, "cache_size", cfg.GoogleCacheSize)
	} else {
		logger.Info("google forecasts disabled")
	}

	var publisher pipeline.TriggerPublisher
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTriggerTopic)
	}

	p := pipeline.New(fetchers, st, publisher, pipeline.Options{
		Level:      cfg.TriggerLevel,
		Thresholds: thresholds.For(cfg.TriggerLevel),
		Interval:   cfg.MonitorInterval,

		LGAs:          thresholds.FlashFlood.LGAs,
		RollingWindow: thresholds.FlashFlood.Window,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, st, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start monitoring pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-history-etl/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/weather-history-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-history-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-history-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-history-etl/internal/config"
	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/observability"
	"github.com/couchcryptid/weather-history-etl/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if err := run(cfg, logger, metrics); err != nil {
		logger.Error("service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks := []pipeline.ResultSink{csvfile.NewWriter(cfg.OutputDir, logger)}
	var checks allReady

	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		}()
		sinks = append(sinks, store)
		checks = append(checks, store)
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	var actuals pipeline.RowSource
	if cfg.RawActualsPath != "" {
		actuals = csvfile.NewReader(cfg.RawActualsPath, logger)
	}

	p := pipeline.New(
		csvfile.NewReader(cfg.RawHistoryPath, logger),
		actuals,
		sinks,
		pipelineOptions(cfg),
		logger,
		metrics,
	)

	checks = append(allReady{p}, checks...)
	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, p, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if _, err := p.Run(gctx); err != nil {
			if err := pipelineExit(ctx, err); err != nil {
				return fmt.Errorf("pipeline: %w", err)
			}
			logger.Info("pipeline interrupted by shutdown signal")
			return nil
		}
		if cfg.ExitAfterRun {
			logger.Info("run finished, exiting")
			cancel()
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Normalize:  domain.NormalizeOptions{SwapInvertedTemps: cfg.SwapInvertedTemps},
		Forecast:   cfg.ForecastConfig(),
		Target:     cfg.ForecastTarget,
		Horizon:    cfg.ForecastHorizon,
		TrainStart: cfg.TrainStart,
		TrainEnd:   cfg.TrainEnd,
	}
}

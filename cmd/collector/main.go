package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bizscope/weather-collector/internal/adapter/blob"
	httpadapter "github.com/bizscope/weather-collector/internal/adapter/http"
	kafkaadapter "github.com/bizscope/weather-collector/internal/adapter/kafka"
	"github.com/bizscope/weather-collector/internal/adapter/kma"
	"github.com/bizscope/weather-collector/internal/adapter/seoul"
	"github.com/bizscope/weather-collector/internal/adapter/sgis"
	"github.com/bizscope/weather-collector/internal/config"
	"github.com/bizscope/weather-collector/internal/domain"
	"github.com/bizscope/weather-collector/internal/observability"
	"github.com/bizscope/weather-collector/internal/pipeline"
	"github.com/bizscope/weather-collector/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	fetcher := kma.NewClient(cfg, metrics, logger)

	// Geocoder (feature-flagged via SGIS_ENABLED / SGIS_CONSUMER_KEY).
	var geocoder domain.Geocoder
	if cfg.SGISEnabled {
		client := sgis.NewClient(cfg, metrics, logger)
		geocoder = sgis.NewCachedGeocoder(client, cfg.SGISCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("sgis geocoding enabled", "cache_size", cfg.SGISCacheSize, "addr_type", cfg.SGISAddrType)
	} else {
		logger.Info("sgis geocoding disabled")
	}

	var store pipeline.Store
	if cfg.UploadEnabled {
		azure, err := blob.NewAzureStore(cfg.StorageConnectionString, cfg.StorageContainer, logger)
		if err != nil {
			logger.Error("failed to create blob store", "error", err)
			os.Exit(1)
		}
		store = azure
		logger.Info("blob uploads enabled", "container", cfg.StorageContainer)
	} else {
		logger.Info("blob uploads disabled")
	}

	var writer *kafkaadapter.Writer
	var publisher pipeline.Publisher
	if cfg.PublishEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("event publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("event publishing disabled")
	}

	collector := pipeline.NewCollector(fetcher, geocoder, store, publisher,
		cfg.StationCode, logger, metrics)

	if cfg.PopulationEnabled {
		population := seoul.NewClient(cfg, metrics, logger)
		sources := population.Sources()
		for _, src := range sources {
			collector.AddPopulationSources(src)
		}
		logger.Info("population feeds enabled", "sources", len(sources))
	} else {
		logger.Info("population feeds disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	sched := scheduler.New(logger, metrics)
	if err := sched.AddJob(ctx, "hourly", cfg.CollectInterval, collector.CollectHourly); err != nil {
		logger.Error("failed to schedule hourly collection", "error", err)
		os.Exit(1)
	}
	if cfg.PopulationEnabled {
		if err := sched.AddJob(ctx, "population", cfg.CollectInterval, collector.CollectPopulation); err != nil {
			logger.Error("failed to schedule population collection", "error", err)
			os.Exit(1)
		}
	}
	sched.Start()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

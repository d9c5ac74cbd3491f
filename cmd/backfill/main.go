// Command backfill collects historical months of daily summaries and,
// optionally, one station-metadata snapshot. Months whose artifact
// already exists are skipped, so re-running over an overlapping range is
// safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bizscope/weather-collector/internal/adapter/blob"
	kafkaadapter "github.com/bizscope/weather-collector/internal/adapter/kafka"
	"github.com/bizscope/weather-collector/internal/adapter/kma"
	"github.com/bizscope/weather-collector/internal/adapter/sgis"
	"github.com/bizscope/weather-collector/internal/config"
	"github.com/bizscope/weather-collector/internal/domain"
	"github.com/bizscope/weather-collector/internal/observability"
	"github.com/bizscope/weather-collector/internal/pipeline"
)

func main() {
	from := flag.String("from", "", "first month to collect (YYYYMM)")
	to := flag.String("to", "", "last month to collect (YYYYMM, inclusive)")
	stations := flag.Bool("stations", false, "also collect and enrich station metadata")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	fromYear, fromMonth, err := parseMonth(*from)
	if err != nil {
		logger.Error("invalid -from", "error", err)
		os.Exit(2)
	}
	toYear, toMonth, err := parseMonth(*to)
	if err != nil {
		logger.Error("invalid -to", "error", err)
		os.Exit(2)
	}
	if fromYear*100+fromMonth > toYear*100+toMonth {
		logger.Error("-from is after -to", "from", *from, "to", *to)
		os.Exit(2)
	}

	fetcher := kma.NewClient(cfg, metrics, logger)

	var geocoder domain.Geocoder
	if cfg.SGISEnabled {
		geocoder = sgis.NewCachedGeocoder(sgis.NewClient(cfg, metrics, logger), cfg.SGISCacheSize, metrics)
	}

	var store pipeline.Store
	if cfg.UploadEnabled {
		azure, err := blob.NewAzureStore(cfg.StorageConnectionString, cfg.StorageContainer, logger)
		if err != nil {
			logger.Error("failed to create blob store", "error", err)
			os.Exit(1)
		}
		store = azure
	}

	var writer *kafkaadapter.Writer
	var publisher pipeline.Publisher
	if cfg.PublishEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		defer writer.Close() //nolint:errcheck
	}

	collector := pipeline.NewCollector(fetcher, geocoder, store, publisher,
		cfg.StationCode, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("backfill starting", "from", *from, "to", *to, "station", cfg.StationCode)
	collector.CollectRange(ctx, fromYear, fromMonth, toYear, toMonth)

	if *stations {
		tm := time.Now().UTC().Format("200601021504")
		if err := collector.EnrichStations(ctx, tm); err != nil {
			logger.Error("station enrichment failed", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("backfill complete")
}

func parseMonth(s string) (year, month int, err error) {
	t, err := time.Parse("200601", s)
	if err != nil {
		return 0, 0, fmt.Errorf("want YYYYMM, got %q", s)
	}
	return t.Year(), int(t.Month()), nil
}

// Package pipeline orchestrates the collection runs: fetch, parse, enrich,
// incremental-sink decide, upload, publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bizscope/weather-collector/internal/domain"
	"github.com/bizscope/weather-collector/internal/observability"
)

// WeatherFetcher retrieves raw text feeds from the upstream weather API.
type WeatherFetcher interface {
	DailySummaries(ctx context.Context, tm1, tm2, stn string) (string, error)
	RawWindow(ctx context.Context, tm1, tm2, stn string) (string, error)
	StationInfo(ctx context.Context, tm, stn string) (string, error)
}

// Store is the storage collaborator: named-path upload plus the existence
// check behind the incremental sink.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	Upload(ctx context.Context, path string, data []byte) error
}

// Publisher sends one opaque payload per call to the event stream.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// PopulationSource is one auxiliary JSON feed published alongside the
// weather window (Seoul living population, S-DoT sensors).
type PopulationSource interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// RunStatus summarizes the most recent completed collection run, surfaced
// through the readiness endpoint.
type RunStatus struct {
	CompletedRuns int       `json:"completed_runs"`
	LastJob       string    `json:"last_job,omitempty"`
	LastRun       time.Time `json:"last_run,omitzero"`
	LastRecords   int       `json:"last_records"`
}

// Collector drives the collection pipeline. Each collaborator may be nil,
// which disables the corresponding stage (no geocoder: no enrichment; no
// store: no uploads; no publisher: no events).
type Collector struct {
	fetcher     WeatherFetcher
	geocoder    domain.Geocoder
	store       Store
	publisher   Publisher
	population  []PopulationSource
	stationCode string
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu     sync.Mutex
	status RunStatus
}

// NewCollector creates a Collector. stationCode "0" collects all stations.
func NewCollector(
	fetcher WeatherFetcher,
	geocoder domain.Geocoder,
	store Store,
	publisher Publisher,
	stationCode string,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Collector {
	return &Collector{
		fetcher:     fetcher,
		geocoder:    geocoder,
		store:       store,
		publisher:   publisher,
		stationCode: stationCode,
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		metrics:     metrics,
	}
}

// AddPopulationSources registers auxiliary feeds for CollectPopulation.
func (c *Collector) AddPopulationSources(sources ...PopulationSource) {
	c.population = append(c.population, sources...)
}

// CheckReadiness returns nil once at least one collection has completed.
func (c *Collector) CheckReadiness(_ context.Context) error {
	if c.Status().CompletedRuns == 0 {
		return errors.New("no collection has completed yet")
	}
	return nil
}

// Status returns a snapshot of the most recent completed run.
func (c *Collector) Status() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Collector) finishRun(job string, records int) {
	c.mu.Lock()
	c.status.CompletedRuns++
	c.status.LastJob = job
	c.status.LastRun = c.clock.Now().UTC()
	c.status.LastRecords = records
	c.mu.Unlock()
}

// CollectHourly fetches the raw feed for the last hour (comment header
// included) and publishes it as-is. The parser is not involved; the
// payload is the upstream text.
func (c *Collector) CollectHourly(ctx context.Context) error {
	start := c.clock.Now()
	now := start.UTC()
	tm1 := now.Add(-time.Hour).Format("200601021504")
	tm2 := now.Format("200601021504")

	raw, err := c.fetcher.RawWindow(ctx, tm1, tm2, c.stationCode)
	if err != nil {
		return fmt.Errorf("hourly window %s-%s: %w", tm1, tm2, err)
	}

	if err := c.publish(ctx, "weather/hourly/"+tm2, []byte(raw)); err != nil {
		return fmt.Errorf("publish hourly window: %w", err)
	}

	c.metrics.RunDuration.WithLabelValues("hourly").Observe(c.clock.Since(start).Seconds())
	c.finishRun("hourly", 0)
	c.logger.Info("hourly window collected", "tm1", tm1, "tm2", tm2, "bytes", len(raw))
	return nil
}

// CollectPopulation fetches each registered population feed and publishes
// its JSON snapshot. Feeds fail independently, like months in a backfill:
// a failed feed is logged, counted, and skipped while the rest proceed.
func (c *Collector) CollectPopulation(ctx context.Context) error {
	if len(c.population) == 0 {
		return nil
	}
	start := c.clock.Now()
	tm := start.UTC().Format("200601021504")

	published := 0
	for _, src := range c.population {
		payload, err := src.Fetch(ctx)
		if err != nil {
			c.metrics.SourceFailures.WithLabelValues(src.Name()).Inc()
			c.logger.Warn("population source skipped", "source", src.Name(), "error", err)
			continue
		}
		if err := c.publish(ctx, "population/"+src.Name()+"/"+tm, payload); err != nil {
			c.metrics.SourceFailures.WithLabelValues(src.Name()).Inc()
			c.logger.Warn("population publish failed", "source", src.Name(), "error", err)
			continue
		}
		published++
		c.logger.Info("population snapshot published", "source", src.Name(), "bytes", len(payload))
	}

	c.metrics.RunDuration.WithLabelValues("population").Observe(c.clock.Since(start).Seconds())
	c.finishRun("population", published)
	return nil
}

// CollectMonthly fetches one month of daily summaries, parses them, and —
// unless the artifact for this month/station key already exists — uploads
// the CSV and publishes the record set. An existing artifact makes the
// whole month a no-op, which keeps re-runs over overlapping ranges
// idempotent.
func (c *Collector) CollectMonthly(ctx context.Context, year, month int) error {
	start := c.clock.Now()
	tm1 := fmt.Sprintf("%d%02d01", year, month)
	tm2 := fmt.Sprintf("%d%02d%02d", year, month, lastDayOfMonth(year, month))

	path := observationPath(year, month, c.stationCode)
	write, err := c.shouldWrite(ctx, path)
	if err != nil {
		return fmt.Errorf("check artifact %s: %w", path, err)
	}
	if !write {
		c.logger.Info("artifact already present, skipping month", "path", path)
		return nil
	}

	raw, err := c.fetcher.DailySummaries(ctx, tm1, tm2, c.stationCode)
	if err != nil {
		return fmt.Errorf("month %s: %w", tm1[:6], err)
	}

	records, err := domain.ParseObservations(raw)
	if err != nil {
		c.metrics.ParseFailures.WithLabelValues("observation").Inc()
		return fmt.Errorf("month %s: %w", tm1[:6], err)
	}
	c.metrics.RecordsParsed.WithLabelValues("observation").Add(float64(len(records)))

	csvData, err := EncodeObservationsCSV(records)
	if err != nil {
		return fmt.Errorf("encode month %s: %w", tm1[:6], err)
	}
	if err := c.upload(ctx, path, csvData); err != nil {
		return err
	}

	payload, err := encodeObservationsJSON(records)
	if err != nil {
		return fmt.Errorf("encode month %s: %w", tm1[:6], err)
	}
	if err := c.publish(ctx, "weather/monthly/"+tm1[:6], payload); err != nil {
		return fmt.Errorf("publish month %s: %w", tm1[:6], err)
	}

	c.metrics.RunDuration.WithLabelValues("monthly").Observe(c.clock.Since(start).Seconds())
	c.finishRun("monthly", len(records))
	c.logger.Info("month collected", "tm1", tm1, "tm2", tm2, "records", len(records))
	return nil
}

// CollectRange runs CollectMonthly over an inclusive month range. Months
// fail independently: a failed month logs a warning and the loop
// continues, so one bad upstream window never aborts a backfill.
func (c *Collector) CollectRange(ctx context.Context, fromYear, fromMonth, toYear, toMonth int) {
	for year := fromYear; year <= toYear; year++ {
		first, last := 1, 12
		if year == fromYear {
			first = fromMonth
		}
		if year == toYear {
			last = toMonth
		}
		for month := first; month <= last; month++ {
			if ctx.Err() != nil {
				return
			}
			if err := c.CollectMonthly(ctx, year, month); err != nil {
				c.metrics.SourceFailures.WithLabelValues("weather").Inc()
				c.logger.Warn("month skipped", "year", year, "month", month, "error", err)
			}
		}
	}
}

// EnrichStations fetches station metadata effective at tm (YYYYMMDDHHmm),
// reverse-geocodes each station's address, and stores/publishes the
// enriched table. The same existence key makes re-runs for the same tm
// no-ops.
func (c *Collector) EnrichStations(ctx context.Context, tm string) error {
	start := c.clock.Now()

	path := stationPath(tm)
	write, err := c.shouldWrite(ctx, path)
	if err != nil {
		return fmt.Errorf("check artifact %s: %w", path, err)
	}
	if !write {
		c.logger.Info("artifact already present, skipping station run", "path", path)
		return nil
	}

	raw, err := c.fetcher.StationInfo(ctx, tm, c.stationCode)
	if err != nil {
		return fmt.Errorf("stations %s: %w", tm, err)
	}

	stations, err := domain.ParseStations(raw)
	if err != nil {
		c.metrics.ParseFailures.WithLabelValues("station").Inc()
		return fmt.Errorf("stations %s: %w", tm, err)
	}
	c.metrics.RecordsParsed.WithLabelValues("station").Add(float64(len(stations)))

	stations = domain.EnrichStations(ctx, stations, c.geocoder, c.logger)

	csvData, err := EncodeStationsCSV(stations)
	if err != nil {
		return fmt.Errorf("encode stations %s: %w", tm, err)
	}
	if err := c.upload(ctx, path, csvData); err != nil {
		return err
	}

	payload, err := encodeStationsJSON(stations)
	if err != nil {
		return fmt.Errorf("encode stations %s: %w", tm, err)
	}
	if err := c.publish(ctx, "stations/"+tm, payload); err != nil {
		return fmt.Errorf("publish stations %s: %w", tm, err)
	}

	c.metrics.RunDuration.WithLabelValues("stations").Observe(c.clock.Since(start).Seconds())
	c.finishRun("stations", len(stations))
	c.logger.Info("stations enriched", "tm", tm, "stations", len(stations))
	return nil
}

// shouldWrite is the incremental sink: an artifact that already exists for
// the key path reports "skip". Existence alone is the dedup key; content
// is never compared.
func (c *Collector) shouldWrite(ctx context.Context, path string) (bool, error) {
	if c.store == nil {
		return true, nil
	}
	exists, err := c.store.Exists(ctx, path)
	if err != nil {
		return false, err
	}
	if exists {
		c.metrics.UploadsSkipped.Inc()
		return false, nil
	}
	return true, nil
}

func (c *Collector) upload(ctx context.Context, path string, data []byte) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Upload(ctx, path, data); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	c.metrics.UploadsWritten.Inc()
	return nil
}

func (c *Collector) publish(ctx context.Context, key string, payload []byte) error {
	if c.publisher == nil {
		return nil
	}
	if err := c.publisher.Publish(ctx, key, payload); err != nil {
		return err
	}
	c.metrics.EventsPublished.Inc()
	return nil
}

// observationPath is the bronze-layer artifact key for one month/station.
func observationPath(year, month int, stn string) string {
	return fmt.Sprintf("bronze/weather/%d/Weather_%d%02d01-%s.csv", year, year, month, stn)
}

// stationPath is the silver-layer artifact key for one station-metadata run.
func stationPath(tm string) string {
	return fmt.Sprintf("silver/stations/enriched_weather_stations_%s.csv", tm)
}

func lastDayOfMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

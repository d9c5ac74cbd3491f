package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizscope/weather-collector/internal/adapter/blob"
	"github.com/bizscope/weather-collector/internal/domain"
	"github.com/bizscope/weather-collector/internal/observability"
)

type fetchCall struct {
	kind string
	tm1  string
	tm2  string
	stn  string
}

type fakeFetcher struct {
	daily      string
	dailyErr   error
	raw        string
	rawErr     error
	station    string
	stationErr error
	calls      []fetchCall

	// failMonths rejects specific tm1 values, for range isolation tests.
	failMonths map[string]error
}

func (f *fakeFetcher) DailySummaries(_ context.Context, tm1, tm2, stn string) (string, error) {
	f.calls = append(f.calls, fetchCall{kind: "daily", tm1: tm1, tm2: tm2, stn: stn})
	if err, ok := f.failMonths[tm1]; ok {
		return "", err
	}
	return f.daily, f.dailyErr
}

func (f *fakeFetcher) RawWindow(_ context.Context, tm1, tm2, stn string) (string, error) {
	f.calls = append(f.calls, fetchCall{kind: "raw", tm1: tm1, tm2: tm2, stn: stn})
	return f.raw, f.rawErr
}

func (f *fakeFetcher) StationInfo(_ context.Context, tm, stn string) (string, error) {
	f.calls = append(f.calls, fetchCall{kind: "station", tm1: tm, stn: stn})
	return f.station, f.stationErr
}

type publishedMessage struct {
	key     string
	payload []byte
}

type capturePublisher struct {
	messages []publishedMessage
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, key string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, publishedMessage{key: key, payload: payload})
	return nil
}

type stubGeocoder struct {
	addr domain.Address
}

func (g *stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.Address, error) {
	return g.addr, nil
}

// observationLine builds one daily-summary line with the given date and
// station and filler values for the remaining 54 columns.
func observationLine(date, stn string) string {
	fields := make([]string, 0, domain.ObservationFieldCount)
	fields = append(fields, date, stn)
	for i := 2; i < domain.ObservationFieldCount; i++ {
		fields = append(fields, fmt.Sprintf("%d.%d", i, i))
	}
	return strings.Join(fields, " ")
}

const stationFeed = "#START7777\n" +
	"# STN LON LAT ...\n" +
	"108 126.9658 37.5714 0 85.67 86.0 1.5 10.0 0.6 11 서울 Seoul 109 1111000000 12\n" +
	"90 128.5647 38.2509 0 17.53 18.0 1.7 10.0 0.5 11 속초 Sokcho 105 5182000000 1\n" +
	"#7777END\n"

func observationFeed(lines ...string) string {
	return "#START7777\n# TM STN ...\n" + strings.Join(lines, "\n") + "\n#7777END\n"
}

type collectorFixture struct {
	collector *Collector
	fetcher   *fakeFetcher
	store     *blob.MemoryStore
	publisher *capturePublisher
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T, fetcher *fakeFetcher, geocoder domain.Geocoder) *collectorFixture {
	t.Helper()
	store := blob.NewMemoryStore()
	publisher := &capturePublisher{}
	c := NewCollector(fetcher, geocoder, store, publisher, "0",
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	clock := clockwork.NewFakeClockAt(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC))
	c.clock = clock
	return &collectorFixture{collector: c, fetcher: fetcher, store: store, publisher: publisher, clock: clock}
}

func TestCollectMonthly_UploadsAndPublishes(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{
		daily: observationFeed(
			observationLine("20240101", "108"),
			observationLine("20240102", "108"),
		),
	}, nil)

	require.NoError(t, fx.collector.CollectMonthly(context.Background(), 2024, 1))

	require.Len(t, fx.fetcher.calls, 1)
	assert.Equal(t, "20240101", fx.fetcher.calls[0].tm1)
	assert.Equal(t, "20240131", fx.fetcher.calls[0].tm2)

	data, ok := fx.store.Get("bronze/weather/2024/Weather_20240101-0.csv")
	require.True(t, ok)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "\xEF\xBB\xBF"))
	assert.Contains(t, text, "TM,STN,WS_AVG")
	assert.Contains(t, text, "20240102,108")

	require.Len(t, fx.publisher.messages, 1)
	assert.Equal(t, "weather/monthly/202401", fx.publisher.messages[0].key)

	var event struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(fx.publisher.messages[0].payload, &event))
	assert.Len(t, event.Columns, domain.ObservationFieldCount)
	require.Len(t, event.Rows, 2)
	assert.Equal(t, "20240101", event.Rows[0][0])
}

func TestCollectMonthly_FebruaryLeapYearWindow(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{daily: observationFeed(observationLine("20240201", "108"))}, nil)

	require.NoError(t, fx.collector.CollectMonthly(context.Background(), 2024, 2))

	require.Len(t, fx.fetcher.calls, 1)
	assert.Equal(t, "20240229", fx.fetcher.calls[0].tm2)
}

func TestCollectMonthly_SecondRunIsNoOp(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{daily: observationFeed(observationLine("20240101", "108"))}, nil)
	ctx := context.Background()

	require.NoError(t, fx.collector.CollectMonthly(ctx, 2024, 1))
	require.NoError(t, fx.collector.CollectMonthly(ctx, 2024, 1))

	// The second run must not fetch, upload, or publish again.
	assert.Len(t, fx.fetcher.calls, 1)
	assert.Len(t, fx.publisher.messages, 1)
}

func TestCollectMonthly_ParseErrorAbortsMonth(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{daily: observationFeed("20240101 108 only four fields")}, nil)

	err := fx.collector.CollectMonthly(context.Background(), 2024, 1)

	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	_, ok := fx.store.Get("bronze/weather/2024/Weather_20240101-0.csv")
	assert.False(t, ok, "aborted month must not upload a partial artifact")
	assert.Empty(t, fx.publisher.messages)
}

func TestCollectMonthly_FetchErrorPropagates(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{dailyErr: errors.New("upstream down")}, nil)

	err := fx.collector.CollectMonthly(context.Background(), 2024, 1)

	require.ErrorContains(t, err, "upstream down")
	assert.Empty(t, fx.publisher.messages)
}

func TestCollectRange_FailedMonthDoesNotAbortBackfill(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{
		daily:      observationFeed(observationLine("20231201", "108")),
		failMonths: map[string]error{"20240101": errors.New("gateway timeout")},
	}, nil)

	fx.collector.CollectRange(context.Background(), 2023, 11, 2024, 2)

	for _, path := range []string{
		"bronze/weather/2023/Weather_20231101-0.csv",
		"bronze/weather/2023/Weather_20231201-0.csv",
		"bronze/weather/2024/Weather_20240201-0.csv",
	} {
		_, ok := fx.store.Get(path)
		assert.True(t, ok, path)
	}
	_, ok := fx.store.Get("bronze/weather/2024/Weather_20240101-0.csv")
	assert.False(t, ok, "failed month must not produce an artifact")
}

func TestCollectRange_CancelledContextStops(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{daily: observationFeed(observationLine("20230101", "108"))}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fx.collector.CollectRange(ctx, 2023, 1, 2023, 12)

	assert.Empty(t, fx.fetcher.calls)
}

func TestCollectHourly_PublishesRawText(t *testing.T) {
	raw := "#START7777\n# raw hourly feed\n#7777END\n"
	fx := newFixture(t, &fakeFetcher{raw: raw}, nil)

	require.NoError(t, fx.collector.CollectHourly(context.Background()))

	require.Len(t, fx.fetcher.calls, 1)
	assert.Equal(t, "202402010900", fx.fetcher.calls[0].tm1)
	assert.Equal(t, "202402011000", fx.fetcher.calls[0].tm2)

	require.Len(t, fx.publisher.messages, 1)
	assert.Equal(t, "weather/hourly/202402011000", fx.publisher.messages[0].key)
	assert.Equal(t, raw, string(fx.publisher.messages[0].payload))
}

func TestEnrichStations_UploadsEnrichedTable(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{station: stationFeed}, &stubGeocoder{
		addr: domain.Address{
			Province:    "서울특별시",
			District:    "종로구",
			Town:        "송월동",
			FullAddress: "서울특별시 종로구 송월동",
		},
	})

	require.NoError(t, fx.collector.EnrichStations(context.Background(), "202402011000"))

	data, ok := fx.store.Get("silver/stations/enriched_weather_stations_202402011000.csv")
	require.True(t, ok)
	text := string(data)
	assert.Contains(t, text, "STN_ID,LON,LAT")
	assert.Contains(t, text, "도,시군구,읍면동,전체주소")
	assert.Contains(t, text, "서울,Seoul")
	assert.Contains(t, text, "서울특별시 종로구 송월동")

	require.Len(t, fx.publisher.messages, 1)
	assert.Equal(t, "stations/202402011000", fx.publisher.messages[0].key)

	var stations []domain.StationRecord
	require.NoError(t, json.Unmarshal(fx.publisher.messages[0].payload, &stations))
	require.Len(t, stations, 2)

	want := domain.StationRecord{
		ID: "108", Lon: "126.9658", Lat: "37.5714", NetworkCode: "0",
		Height: "85.67", BarometerHeight: "86.0", ThermoHeight: "1.5",
		AnemoHeight: "10.0", RainGaugeHeight: "0.6", StationCode: "11",
		KoreanName: "서울", EnglishName: "Seoul",
		ForecastZone: "109", LawCode: "1111000000", Basin: "12",
		Province:    "서울특별시",
		District:    "종로구",
		Town:        "송월동",
		FullAddress: "서울특별시 종로구 송월동",
	}
	if diff := cmp.Diff(want, stations[0], cmpopts.IgnoreFields(domain.StationRecord{}, "EnrichedAt")); diff != "" {
		t.Errorf("enriched station mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, stations[0].EnrichedAt.IsZero())
}

func TestEnrichStations_SecondRunIsNoOp(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{station: stationFeed}, nil)
	ctx := context.Background()

	require.NoError(t, fx.collector.EnrichStations(ctx, "202402011000"))
	require.NoError(t, fx.collector.EnrichStations(ctx, "202402011000"))

	assert.Len(t, fx.fetcher.calls, 1)
	assert.Len(t, fx.publisher.messages, 1)
}

func TestEnrichStations_NoGeocoderLeavesAddressesEmpty(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{station: stationFeed}, nil)

	require.NoError(t, fx.collector.EnrichStations(context.Background(), "202402011000"))

	var stations []domain.StationRecord
	require.NoError(t, json.Unmarshal(fx.publisher.messages[0].payload, &stations))
	for _, s := range stations {
		assert.Empty(t, s.Province)
		assert.Empty(t, s.FullAddress)
	}
}

func TestCollector_NilStoreAndPublisher(t *testing.T) {
	fetcher := &fakeFetcher{daily: observationFeed(observationLine("20240101", "108"))}
	c := NewCollector(fetcher, nil, nil, nil, "108",
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	require.NoError(t, c.CollectMonthly(context.Background(), 2024, 1))
}

type fakePopulationSource struct {
	name    string
	payload []byte
	err     error
	calls   int
}

func (f *fakePopulationSource) Name() string { return f.name }

func (f *fakePopulationSource) Fetch(_ context.Context) ([]byte, error) {
	f.calls++
	return f.payload, f.err
}

func TestCollectPopulation_PublishesEachSource(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{}, nil)
	living := &fakePopulationSource{name: "seoul-living", payload: []byte(`{"rows":1}`)}
	sdot := &fakePopulationSource{name: "sdot-floating", payload: []byte(`{"rows":2}`)}
	fx.collector.AddPopulationSources(living, sdot)

	require.NoError(t, fx.collector.CollectPopulation(context.Background()))

	require.Len(t, fx.publisher.messages, 2)
	assert.Equal(t, "population/seoul-living/202402011000", fx.publisher.messages[0].key)
	assert.Equal(t, `{"rows":1}`, string(fx.publisher.messages[0].payload))
	assert.Equal(t, "population/sdot-floating/202402011000", fx.publisher.messages[1].key)
	assert.Equal(t, `{"rows":2}`, string(fx.publisher.messages[1].payload))
}

func TestCollectPopulation_FailedSourceDoesNotBlockOthers(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{}, nil)
	broken := &fakePopulationSource{name: "seoul-living", err: errors.New("quota exceeded")}
	working := &fakePopulationSource{name: "sdot-floating", payload: []byte(`{"rows":2}`)}
	fx.collector.AddPopulationSources(broken, working)

	require.NoError(t, fx.collector.CollectPopulation(context.Background()))

	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, working.calls)
	require.Len(t, fx.publisher.messages, 1)
	assert.Equal(t, "population/sdot-floating/202402011000", fx.publisher.messages[0].key)
}

func TestCollectPopulation_NoSourcesIsNoOp(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{}, nil)

	require.NoError(t, fx.collector.CollectPopulation(context.Background()))

	assert.Empty(t, fx.publisher.messages)
	assert.Error(t, fx.collector.CheckReadiness(context.Background()))
}

func TestStatus_TracksLastRun(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{
		daily: observationFeed(
			observationLine("20240101", "108"),
			observationLine("20240102", "108"),
		),
	}, nil)

	assert.Equal(t, RunStatus{}, fx.collector.Status())

	require.NoError(t, fx.collector.CollectMonthly(context.Background(), 2024, 1))

	st := fx.collector.Status()
	assert.Equal(t, 1, st.CompletedRuns)
	assert.Equal(t, "monthly", st.LastJob)
	assert.Equal(t, 2, st.LastRecords)
	assert.Equal(t, fx.clock.Now().UTC(), st.LastRun)
}

func TestCheckReadiness(t *testing.T) {
	fx := newFixture(t, &fakeFetcher{daily: observationFeed(observationLine("20240101", "108"))}, nil)
	ctx := context.Background()

	require.Error(t, fx.collector.CheckReadiness(ctx))
	require.NoError(t, fx.collector.CollectMonthly(ctx, 2024, 1))
	assert.NoError(t, fx.collector.CheckReadiness(ctx))
}

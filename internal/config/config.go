package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// KMA API hub.
	KMABaseURL    string
	KMAStationURL string
	KMAAuthKey    string
	StationCode   string // "0" means all stations

	FetchMaxAttempts int
	FetchBackoff     time.Duration
	FetchTimeout     time.Duration

	// SGIS geocoding.
	SGISBaseURL        string
	SGISConsumerKey    string
	SGISConsumerSecret string
	SGISEnabled        bool
	SGISAddrType       int
	SGISTimeout        time.Duration
	SGISCacheSize      int
	SGISRateLimit      float64 // lookups per second

	// Seoul open-data population feeds.
	SeoulPopulationURL string
	SeoulPopulationKey string
	SdotPopulationURL  string
	SdotPopulationKey  string
	PopulationEnabled  bool
	PopulationPageSize int

	// Azure blob storage.
	StorageConnectionString string
	StorageContainer        string
	UploadEnabled           bool

	// Event stream (Kafka wire protocol; Event Hubs exposes one).
	KafkaBrokers   []string
	KafkaTopic     string
	PublishEnabled bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CollectInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	fetchBackoff, err := envDuration("FETCH_BACKOFF", 5*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := envDuration("FETCH_TIMEOUT", 100*time.Second)
	if err != nil {
		return nil, err
	}
	sgisTimeout, err := envDuration("SGIS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	collectInterval, err := envDuration("COLLECT_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	sgisKey := os.Getenv("SGIS_CONSUMER_KEY")
	sgisSecret := os.Getenv("SGIS_CONSUMER_SECRET")
	sgisEnabled := sgisKey != "" && sgisSecret != ""
	if v := os.Getenv("SGIS_ENABLED"); v != "" {
		sgisEnabled = v == "true"
	}

	seoulURL := os.Getenv("SEOUL_POPULATION_API_ENDPOINT")
	seoulKey := os.Getenv("SEOUL_POPULATION_API_KEY")
	sdotURL := os.Getenv("SDOT_POPULATION_API_ENDPOINT")
	sdotKey := os.Getenv("SDOT_POPULATION_API_KEY")
	populationEnabled := (seoulURL != "" && seoulKey != "") || (sdotURL != "" && sdotKey != "")
	if v := os.Getenv("POPULATION_ENABLED"); v != "" {
		populationEnabled = v == "true"
	}

	connString := os.Getenv("AZURE_STORAGE_CONNECTION_STRING")
	uploadEnabled := connString != ""
	if v := os.Getenv("UPLOAD_ENABLED"); v != "" {
		uploadEnabled = v == "true"
	}

	brokers := splitList(os.Getenv("KAFKA_BROKERS"))
	publishEnabled := len(brokers) > 0
	if v := os.Getenv("PUBLISH_ENABLED"); v != "" {
		publishEnabled = v == "true"
	}

	cfg := &Config{
		KMABaseURL:    envOrDefault("KMA_BASE_URL", "https://apihub.kma.go.kr/api/typ01/url/kma_sfcdd3.php"),
		KMAStationURL: envOrDefault("KMA_STATION_URL", "https://apihub.kma.go.kr/api/typ01/url/stn_inf.php"),
		KMAAuthKey:    os.Getenv("KMA_AUTH_KEY"),
		StationCode:   envOrDefault("STATION_CODE", "0"),

		FetchMaxAttempts: envInt("FETCH_MAX_ATTEMPTS", 3),
		FetchBackoff:     fetchBackoff,
		FetchTimeout:     fetchTimeout,

		SGISBaseURL:        envOrDefault("SGIS_BASE_URL", "https://sgisapi.kostat.go.kr/OpenAPI3"),
		SGISConsumerKey:    sgisKey,
		SGISConsumerSecret: sgisSecret,
		SGISEnabled:        sgisEnabled,
		SGISAddrType:       envInt("SGIS_ADDR_TYPE", 20),
		SGISTimeout:        sgisTimeout,
		SGISCacheSize:      envInt("SGIS_CACHE_SIZE", 1000),
		SGISRateLimit:      envFloat("SGIS_RATE_LIMIT", 5),

		SeoulPopulationURL: seoulURL,
		SeoulPopulationKey: seoulKey,
		SdotPopulationURL:  sdotURL,
		SdotPopulationKey:  sdotKey,
		PopulationEnabled:  populationEnabled,
		PopulationPageSize: envInt("POPULATION_PAGE_SIZE", 10),

		StorageConnectionString: connString,
		StorageContainer:        os.Getenv("AZURE_CONTAINER_NAME"),
		UploadEnabled:           uploadEnabled,

		KafkaBrokers:   brokers,
		KafkaTopic:     envOrDefault("KAFKA_TOPIC", "weather-raw"),
		PublishEnabled: publishEnabled,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CollectInterval: collectInterval,
	}

	if cfg.KMAAuthKey == "" {
		return nil, errors.New("KMA_AUTH_KEY is required")
	}
	if cfg.FetchMaxAttempts < 1 {
		return nil, errors.New("FETCH_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.SGISEnabled && (cfg.SGISConsumerKey == "" || cfg.SGISConsumerSecret == "") {
		return nil, errors.New("SGIS_ENABLED is true but SGIS_CONSUMER_KEY/SGIS_CONSUMER_SECRET are not set")
	}
	if cfg.SGISAddrType != 10 && cfg.SGISAddrType != 20 {
		return nil, errors.New("SGIS_ADDR_TYPE must be 10 (lot-number) or 20 (road-name)")
	}
	if cfg.PopulationEnabled &&
		(cfg.SeoulPopulationURL == "" || cfg.SeoulPopulationKey == "") &&
		(cfg.SdotPopulationURL == "" || cfg.SdotPopulationKey == "") {
		return nil, errors.New("POPULATION_ENABLED is true but no population endpoint/key pair is set")
	}
	if cfg.PopulationPageSize < 1 {
		return nil, errors.New("POPULATION_PAGE_SIZE must be at least 1")
	}
	if cfg.UploadEnabled && (cfg.StorageConnectionString == "" || cfg.StorageContainer == "") {
		return nil, errors.New("UPLOAD_ENABLED is true but AZURE_STORAGE_CONNECTION_STRING/AZURE_CONTAINER_NAME are not set")
	}
	if cfg.PublishEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("PUBLISH_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package infra

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	MetricsPort         string
	DatabaseURL         string
	DefaultLocale       string
	GeoIPDBPath         string
	OperationsConfig    string
	SnapshotBackend     string
	SnapshotPath        string
	MinIOEndpoint       string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOBucket         string
	MinIOUseSSL         bool
	MediaAPIKey         string
	MediaBaseURL        string
	MediaDeliveryURL    string
	MediaRatePerSecond  float64
	MediaRequestTimeout time.Duration
	KafkaBrokers        []string
	KafkaTopic          string
	CORSAllowedOrigins  []string
	SourceHostAllowlist []string
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerMin     int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		MetricsPort:         getEnv("METRICS_PORT", "9090"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		OperationsConfig:    getEnv("OPERATIONS_CONFIG", "config/operations.yaml"),
		SnapshotBackend:     strings.ToLower(getEnv("SNAPSHOT_BACKEND", "file")),
		SnapshotPath:        getEnv("SNAPSHOT_PATH", "data/sessions"),
		MinIOEndpoint:       os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:      os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:      os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:         getEnv("MINIO_BUCKET", "studio-sessions"),
		MinIOUseSSL:         getEnvBool("MINIO_USE_SSL", false),
		MediaAPIKey:         os.Getenv("MEDIA_API_KEY"),
		MediaBaseURL:        getEnv("MEDIA_BASE_URL", "https://api.media.example.com"),
		MediaDeliveryURL:    os.Getenv("MEDIA_DELIVERY_URL"),
		MediaRatePerSecond:  getEnvFloat("MEDIA_RATE_PER_SECOND", 10),
		MediaRequestTimeout: time.Second * time.Duration(getEnvInt("MEDIA_REQUEST_TIMEOUT_SECONDS", 60)),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "studio.operation-events"),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 360)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}
	if cfg.MediaDeliveryURL == "" {
		cfg.MediaDeliveryURL = cfg.MediaBaseURL
	}
	cfg.SourceHostAllowlist = buildAllowlist(cfg.MediaDeliveryURL, os.Getenv("SOURCE_HOST_ALLOWLIST"))

	if cfg.MediaAPIKey == "" {
		return nil, fmt.Errorf("MEDIA_API_KEY is required")
	}
	switch cfg.SnapshotBackend {
	case "file":
	case "minio":
		if cfg.MinIOEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when SNAPSHOT_BACKEND=minio")
		}
	default:
		return nil, fmt.Errorf("unsupported SNAPSHOT_BACKEND %q", cfg.SnapshotBackend)
	}

	return cfg, nil
}

// buildAllowlist merges the delivery host with explicit hosts, sorted and
// de-duplicated.
func buildAllowlist(deliveryURL, extra string) []string {
	var hosts []string
	if u, err := url.Parse(deliveryURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, strings.ToLower(u.Hostname()))
	}
	for _, h := range splitList(extra) {
		hosts = append(hosts, strings.ToLower(h))
	}
	slices.Sort(hosts)
	return slices.Compact(hosts)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

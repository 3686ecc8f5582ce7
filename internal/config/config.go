package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// AppBaseURL is the default checkout host used when a company has no custom domain.
	AppBaseURL string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CredentialsEncryptionKey string

	// BootstrapCompany names the company seeded on an empty database outside production.
	BootstrapCompany string

	Scheduler SchedulerConfig
	Events    EventsConfig
	Telemetry TelemetryConfig
}

// TelemetryConfig holds the raw log and OTLP export settings.
type TelemetryConfig struct {
	LogLevel  string
	LogFormat string
	// QuietRoutes are request paths logged at debug level.
	QuietRoutes []string

	OtelEnabled   bool
	OtelEndpoint  string
	OtelProtocol  string
	SamplingRatio float64
}

// SchedulerConfig controls the background job runner.
type SchedulerConfig struct {
	Enabled     bool
	Interval    time.Duration
	EnabledJobs []string
}

// EventsConfig controls the payment event relay and subscriber.
type EventsConfig struct {
	RelayInterval  time.Duration
	RelayBatchSize int
	ChannelPrefix  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:                  getenv("APP_SERVICE", "vehicleguard"),
		AppVersion:               getenv("APP_VERSION", "0.1.0"),
		Environment:              getenv("ENVIRONMENT", "development"),
		HTTPAddr:                 getenv("HTTP_ADDR", ":8080"),
		AppBaseURL:               strings.TrimSpace(getenv("APP_BASE_URL", "https://app.vehicleguard.com.br")),
		DBType:                   getenv("DATABASE_TYPE", "postgres"),
		DBHost:                   getenv("DATABASE_HOST", "localhost"),
		DBPort:                   getenv("DATABASE_PORT", "5432"),
		DBName:                   getenv("DATABASE_NAME", "vehicleguard"),
		DBUser:                   getenv("DATABASE_USER", "postgres"),
		DBPassword:               getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:                getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:            getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:            getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime:        getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime:        getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBAutoMigrate:            getenvBool("DATABASE_AUTO_MIGRATE", true),
		RedisAddr:                strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:            getenv("REDIS_PASSWORD", ""),
		RedisDB:                  getenvInt("REDIS_DB", 0),
		CredentialsEncryptionKey: strings.TrimSpace(getenv("CREDENTIALS_ENCRYPTION_KEY", "")),
		BootstrapCompany:         strings.TrimSpace(getenv("BOOTSTRAP_COMPANY", "")),
		Scheduler: SchedulerConfig{
			Enabled:     getenvBool("SCHEDULER_ENABLED", true),
			Interval:    getenvDuration("SCHEDULER_INTERVAL", time.Minute),
			EnabledJobs: parseList(getenv("SCHEDULER_JOBS", "")),
		},
		Events: EventsConfig{
			RelayInterval:  getenvDuration("PAYMENT_EVENTS_RELAY_INTERVAL", 5*time.Second),
			RelayBatchSize: getenvInt("PAYMENT_EVENTS_RELAY_BATCH", 100),
			ChannelPrefix:  getenv("PAYMENT_EVENTS_CHANNEL_PREFIX", "vehicleguard:payments"),
		},
		Telemetry: TelemetryConfig{
			LogLevel:      getenv("LOG_LEVEL", "info"),
			LogFormat:     getenv("LOG_FORMAT", "json"),
			QuietRoutes:   parseList(getenv("LOG_QUIET_ROUTES", "/health,/metrics")),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OtelEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OtelProtocol:  getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
	}

	return cfg
}

// RedisEnabled reports whether a Redis address was configured.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

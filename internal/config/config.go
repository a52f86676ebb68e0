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

	HTTPAddr     string
	OTLPEndpoint string
	RedisAddr    string
	NodeID       int64

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
	DBTxMaxAttempts   int
	DBMetricsEnabled  bool
	DBTracingEnabled  bool

	ReconcileEnabled   bool
	ReconcileInterval  time.Duration
	ReconcileBatchSize int

	SubmitRateLimit SubmitRateLimitConfig
	SeedDemoOffers  bool

	Telemetry TelemetryConfig
}

// TelemetryConfig drives logging and tracing. LogLevel "debug" also turns on
// development logging outside development environments.
type TelemetryConfig struct {
	LogLevel         string
	LogFormat        string
	TracingEnabled   bool
	TraceSampleRatio float64
}

// SubmitRateLimitConfig throttles participation submissions. It needs redis;
// without it submissions are not limited.
type SubmitRateLimitConfig struct {
	Enabled    bool
	UserRate   float64
	UserBurst  int
	OfferRate  float64
	OfferBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:            getenv("APP_SERVICE", "achatons"),
		AppVersion:         getenv("APP_VERSION", "0.1.0"),
		Environment:        getenv("ENVIRONMENT", "development"),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:       getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		RedisAddr:          strings.TrimSpace(getenv("REDIS_ADDR", "")),
		NodeID:             int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5432"),
		DBName:             getenv("DATABASE_NAME", "achatons"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:      getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:      getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:  getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime:  getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		DBTxMaxAttempts:    getenvInt("DATABASE_TX_MAX_ATTEMPTS", 3),
		DBMetricsEnabled:   getenvBool("DATABASE_METRICS_ENABLED", true),
		DBTracingEnabled:   getenvBool("DATABASE_TRACING_ENABLED", true),
		ReconcileEnabled:   getenvBool("RECONCILE_ENABLED", false),
		ReconcileInterval:  getenvDuration("RECONCILE_INTERVAL", 5*time.Minute),
		ReconcileBatchSize: getenvInt("RECONCILE_BATCH_SIZE", 200),
		SubmitRateLimit: SubmitRateLimitConfig{
			Enabled:    getenvBool("SUBMIT_RATE_LIMIT_ENABLED", true),
			UserRate:   getenvFloat("SUBMIT_RATE_LIMIT_USER_RATE", 0.2),
			UserBurst:  getenvInt("SUBMIT_RATE_LIMIT_USER_BURST", 5),
			OfferRate:  getenvFloat("SUBMIT_RATE_LIMIT_OFFER_RATE", 50),
			OfferBurst: getenvInt("SUBMIT_RATE_LIMIT_OFFER_BURST", 100),
		},
		SeedDemoOffers: getenvBool("SEED_DEMO_OFFERS", false),
		Telemetry: TelemetryConfig{
			LogLevel:         strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:        strings.ToLower(getenv("LOG_FORMAT", "json")),
			TracingEnabled:   getenvBool("OTEL_ENABLED", false),
			TraceSampleRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
	}

	return cfg
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

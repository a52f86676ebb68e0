package observability

import (
	"strings"

	"github.com/alimia7/achatons/internal/config"
)

// Config is the slice of application config the logging, tracing and
// metrics providers share.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	TracingEnabled   bool
	TraceEndpoint    string
	TraceSampleRatio float64
}

func LoadConfig(cfg config.Config) Config {
	return Config{
		ServiceName:      orDefault(cfg.AppName, "achatons"),
		Environment:      strings.TrimSpace(cfg.Environment),
		Version:          strings.TrimSpace(cfg.AppVersion),
		LogLevel:         orDefault(strings.ToLower(cfg.Telemetry.LogLevel), "info"),
		LogFormat:        orDefault(strings.ToLower(cfg.Telemetry.LogFormat), "json"),
		TracingEnabled:   cfg.Telemetry.TracingEnabled,
		TraceEndpoint:    strings.TrimSpace(cfg.OTLPEndpoint),
		TraceSampleRatio: clampRatio(cfg.Telemetry.TraceSampleRatio),
	}
}

// Debug reports whether development logging and gin debug mode apply.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func orDefault(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

func clampRatio(r float64) float64 {
	return min(max(r, 0), 1)
}

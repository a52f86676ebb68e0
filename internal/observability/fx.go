package observability

import (
	"github.com/alimia7/achatons/internal/observability/logger"
	"github.com/alimia7/achatons/internal/observability/metrics"
	"github.com/alimia7/achatons/internal/observability/tracing"
	"github.com/alimia7/achatons/pkg/db"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideGormLogger,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.ProvideRegisterer,
		metrics.NewEngineMetrics,
		metrics.NewJobMetrics,
		metrics.NewHTTPMetrics,
		fx.Annotate(provideTxRetryHook, fx.ResultTags(`group:"tx_options"`)),
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideGormLogger(log *zap.Logger, cfg Config) gormlogger.Interface {
	return logger.NewGormLogger(log, logger.DefaultGormLoggerConfig(cfg.Debug()))
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.TracingEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.TraceEndpoint,
		SamplingRatio:    cfg.TraceSampleRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}
}

func provideTxRetryHook(m *metrics.EngineMetrics) db.TxOption {
	return db.WithRetryHook(func(int, error) { m.IncTxRetry() })
}

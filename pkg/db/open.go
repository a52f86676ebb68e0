package db

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

// Open connects to the configured database and applies pool settings.
func Open(cfg Config, logger gormlogger.Interface) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{TranslateError: true}
	if logger != nil {
		gormCfg.Logger = logger
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Second)
	}
	if cfg.Type == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY churn.
		sqlDB.SetMaxOpenConns(1)
	}

	return conn, nil
}

// Instrument registers the tracing and pool metrics plugins enabled in cfg.
// The prometheus plugin registers on the default registry, so it can only be
// installed once per process.
func Instrument(conn *gorm.DB, cfg Config) error {
	if cfg.Tracing {
		if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Name))); err != nil {
			return err
		}
	}
	if cfg.Metrics {
		if err := conn.Use(gormprometheus.New(gormprometheus.Config{
			DBName:          cfg.Name,
			RefreshInterval: 15,
			StartServer:     false,
		})); err != nil {
			return err
		}
	}
	return nil
}

type openParams struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    Config
	Logger gormlogger.Interface `optional:"true"`
	Log    *zap.Logger
}

func provideDB(p openParams) (*gorm.DB, error) {
	conn, err := Open(p.Cfg, p.Logger)
	if err != nil {
		return nil, err
	}
	if err := Instrument(conn, p.Cfg); err != nil {
		return nil, err
	}

	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			p.Log.Info("closing database")
			return sqlDB.Close()
		},
	})
	return conn, nil
}

type transactorParams struct {
	fx.In

	DB   *gorm.DB
	Cfg  Config
	Log  *zap.Logger
	Opts []TxOption `group:"tx_options"`
}

func provideTransactor(p transactorParams) *Transactor {
	opts := append([]TxOption{WithMaxAttempts(p.Cfg.TxMaxAttempts)}, p.Opts...)
	return NewTransactor(p.DB, p.Log, opts...)
}

var Module = fx.Module("db",
	fx.Provide(
		ConfigFrom,
		provideDB,
		provideTransactor,
	),
)

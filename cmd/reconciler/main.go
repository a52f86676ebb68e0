package main

import (
	"github.com/alimia7/achatons/internal/clock"
	"github.com/alimia7/achatons/internal/config"
	"github.com/alimia7/achatons/internal/kv"
	"github.com/alimia7/achatons/internal/notification"
	"github.com/alimia7/achatons/internal/observability"
	"github.com/alimia7/achatons/internal/offer"
	"github.com/alimia7/achatons/internal/participation"
	"github.com/alimia7/achatons/internal/reconcile"
	"github.com/alimia7/achatons/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// The reconciler runs the recompute pass without serving HTTP, so API
// replicas can keep RECONCILE_ENABLED=false.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		kv.Module,

		notification.Module,
		offer.Module,
		participation.Module,
		reconcile.Module,

		// No server module!
		fx.Decorate(func(cfg config.Config) config.Config {
			cfg.ReconcileEnabled = true
			return cfg
		}),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

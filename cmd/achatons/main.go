package main

import (
	"github.com/alimia7/achatons/internal/clock"
	"github.com/alimia7/achatons/internal/config"
	"github.com/alimia7/achatons/internal/kv"
	"github.com/alimia7/achatons/internal/migration"
	"github.com/alimia7/achatons/internal/notification"
	"github.com/alimia7/achatons/internal/observability"
	"github.com/alimia7/achatons/internal/offer"
	"github.com/alimia7/achatons/internal/participation"
	"github.com/alimia7/achatons/internal/pricetier"
	"github.com/alimia7/achatons/internal/ratelimit"
	"github.com/alimia7/achatons/internal/reconcile"
	"github.com/alimia7/achatons/internal/seed"
	"github.com/alimia7/achatons/internal/server"
	"github.com/alimia7/achatons/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		kv.Module,
		migration.Module,
		seed.Module,

		// Functional Domains
		notification.Module,
		offer.Module,
		participation.Module,
		pricetier.Module,
		reconcile.Module,

		ratelimit.Module,
		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

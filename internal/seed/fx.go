package seed

import (
	"context"

	"github.com/alimia7/achatons/internal/clock"
	"github.com/alimia7/achatons/internal/config"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module seeds the demo catalogue when SEED_DEMO_OFFERS is set. It must be
// listed after the migration module.
var Module = fx.Module("seed",
	fx.Invoke(func(cfg config.Config, conn *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger) error {
		if !cfg.SeedDemoOffers {
			return nil
		}
		created, err := EnsureDemoOffers(context.Background(), conn, node, clk.Now())
		if err != nil {
			return err
		}
		log.Info("demo offers seeded", zap.Int("created", created))
		return nil
	}),
)

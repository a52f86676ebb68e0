package reconcile

import (
	"time"

	"github.com/alimia7/achatons/internal/config"
)

// Config controls the reconcile loop.
type Config struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	LockKey   string
	LockTTL   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:   false,
		Interval:  5 * time.Minute,
		BatchSize: 200,
		LockKey:   "achatons:reconcile:lock",
		LockTTL:   4 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:   cfg.ReconcileEnabled,
		Interval:  cfg.ReconcileInterval,
		BatchSize: cfg.ReconcileBatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.LockKey == "" {
		c.LockKey = defaults.LockKey
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricingRulesDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewPricingRulesHolder()
	require.NoError(t, err)
	assert.Equal(t, DefaultPricingRules(), holder.Get())
}

func TestPricingRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pricing:\n  max_tiers: 3\n  urgent_days: 4\n  few_units_threshold: 2\n  currency_label: XOF\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), content, 0o600))
	t.Chdir(dir)

	holder, err := NewPricingRulesHolder()
	require.NoError(t, err)

	rules := holder.Get()
	assert.Equal(t, 3, rules.MaxTiers)
	assert.Equal(t, 4, rules.UrgentDays)
	assert.Equal(t, int64(2), rules.FewUnitsThreshold)
	assert.Equal(t, "XOF", rules.CurrencyLabel)
	assert.Equal(t, int64(10000), rules.MaxParticipationQuantity)
}

func TestPricingRulesRejectsZeroParticipationCap(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pricing:\n  max_participation_quantity: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), content, 0o600))
	t.Chdir(dir)

	_, err := NewPricingRulesHolder()
	assert.Error(t, err)
}

func TestPricingRulesRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pricing:\n  max_tiers: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing.yml"), content, 0o600))
	t.Chdir(dir)

	_, err := NewPricingRulesHolder()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("RECONCILE_INTERVAL", "not-a-duration")

	cfg := Load()
	assert.Equal(t, "achatons", cfg.AppName)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.DBTxMaxAttempts)
	assert.Equal(t, "5m0s", cfg.ReconcileInterval.String())
	assert.False(t, cfg.ReconcileEnabled)
}

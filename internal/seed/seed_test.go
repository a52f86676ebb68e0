package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alimia7/achatons/internal/migration"
	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(conn))
	return conn
}

func TestEnsureDemoOffersIsIdempotent(t *testing.T) {
	conn := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	created, err := EnsureDemoOffers(context.Background(), conn, node, now)
	require.NoError(t, err)
	assert.Equal(t, len(demoOffers), created)

	created, err = EnsureDemoOffers(context.Background(), conn, node, now)
	require.NoError(t, err)
	assert.Zero(t, created)

	var count int64
	require.NoError(t, conn.Model(&offerdomain.Offer{}).Count(&count).Error)
	assert.Equal(t, int64(len(demoOffers)), count)
}

func TestEnsureDemoOffersResolvesTiers(t *testing.T) {
	conn := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	_, err = EnsureDemoOffers(context.Background(), conn, node, time.Now().UTC())
	require.NoError(t, err)

	var rice offerdomain.Offer
	require.NoError(t, conn.Where("slug = ?", "demo-riz-parfume-25kg").First(&rice).Error)
	assert.Equal(t, offerdomain.PricingModelTiered, rice.PricingModel)
	require.Len(t, rice.PricingTiers, 3)
	assert.Equal(t, "Tier 1", rice.PricingTiers[0].Label)
	assert.Equal(t, "Prix grossiste", rice.PricingTiers[2].Label)
	assert.Equal(t, int64(18500), rice.CurrentPrice)
	require.NotNil(t, rice.NextTierQuantity)
	assert.Equal(t, int64(10), *rice.NextTierQuantity)

	var oil offerdomain.Offer
	require.NoError(t, conn.Where("slug = ?", "demo-huile-palme-5l").First(&oil).Error)
	assert.Equal(t, offerdomain.PricingModelFixed, oil.PricingModel)
	assert.Nil(t, oil.NextTierQuantity)
}

func TestEnsureDemoOffersRequiresHandles(t *testing.T) {
	_, err := EnsureDemoOffers(context.Background(), nil, nil, time.Now())
	assert.Error(t, err)
}

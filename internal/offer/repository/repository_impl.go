package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/alimia7/achatons/internal/offer/domain"
	"github.com/alimia7/achatons/pkg/db/option"
	"github.com/alimia7/achatons/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, offer *domain.Offer) error {
	return db.WithContext(ctx).Create(offer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Offer, error) {
	return r.find(db.WithContext(ctx), id)
}

// FindByIDForUpdate takes a row lock on postgres and mysql.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Offer, error) {
	return r.find(option.ForUpdate().Apply(db.WithContext(ctx)), id)
}

func (r *repo) find(stmt *gorm.DB, id snowflake.ID) (*domain.Offer, error) {
	var offer domain.Offer
	err := stmt.Where("id = ?", id).Take(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// UpdateAggregates writes only the engine-owned columns.
func (r *repo) UpdateAggregates(ctx context.Context, db *gorm.DB, offer *domain.Offer) error {
	return db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ?", offer.ID).
		Updates(map[string]any{
			"current_participants": offer.CurrentParticipants,
			"total_quantity":       offer.TotalQuantity,
			"current_tier":         offer.CurrentTier,
			"current_price":        offer.CurrentPrice,
			"next_tier_quantity":   offer.NextTierQuantity,
			"total_revenue":        offer.TotalRevenue,
			"tier_history":         offer.TierHistory,
			"updated_at":           offer.UpdatedAt,
		}).Error
}

func (r *repo) UpdateTiers(ctx context.Context, db *gorm.DB, offer *domain.Offer) error {
	return db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("id = ?", offer.ID).
		Updates(map[string]any{
			"pricing_tiers":      offer.PricingTiers,
			"current_tier":       offer.CurrentTier,
			"current_price":      offer.CurrentPrice,
			"next_tier_quantity": offer.NextTierQuantity,
			"tier_history":       offer.TierHistory,
			"updated_at":         offer.UpdatedAt,
		}).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Offer, error) {
	var offers []*domain.Offer
	stmt := db.WithContext(ctx).Model(&domain.Offer{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if supplierID := strings.TrimSpace(filter.SupplierID); supplierID != "" {
		stmt = stmt.Where("supplier_id = ?", supplierID)
	}
	if categoryID := strings.TrimSpace(filter.CategoryID); categoryID != "" {
		stmt = stmt.Where("category_id = ?", categoryID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

func (r *repo) ListIDsByStatus(ctx context.Context, db *gorm.DB, status domain.Status, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []int64
	stmt := db.WithContext(ctx).
		Model(&domain.Offer{}).
		Where("status = ?", status).
		Order("id asc")
	if afterID > 0 {
		stmt = stmt.Where("id > ?", int64(afterID))
	}
	stmt = option.Limit(limit).Apply(stmt)
	if err := stmt.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		out = append(out, snowflake.ID(id))
	}
	return out, nil
}

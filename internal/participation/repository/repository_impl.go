package repository

import (
	"context"

	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/alimia7/achatons/internal/participation/domain"
	"github.com/alimia7/achatons/pkg/db/option"
	"github.com/alimia7/achatons/pkg/db/pagination"
	"github.com/alimia7/achatons/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func participations(db *gorm.DB) repository.Store[domain.Participation] {
	return repository.On[domain.Participation](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.Participation) error {
	return participations(db).Insert(ctx, p)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Participation, error) {
	return participations(db).Get(ctx, &domain.Participation{ID: id})
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Participation, error) {
	return participations(db).Get(ctx, &domain.Participation{ID: id}, option.ForUpdate())
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, p *domain.Participation) error {
	return participations(db).Patch(ctx, p.ID, map[string]any{
		"status":       p.Status,
		"updated_at":   p.UpdatedAt,
		"validated_at": p.ValidatedAt,
		"cancelled_at": p.CancelledAt,
	})
}

func (r *repo) ListByOffer(ctx context.Context, db *gorm.DB, offerID snowflake.ID, status domain.Status, page pagination.Pagination) ([]*domain.Participation, error) {
	return participations(db).List(ctx,
		&domain.Participation{OfferID: offerID, Status: status},
		option.ApplyPagination(page),
	)
}

// ValidatedEntries returns the validated quantities of an offer in insertion
// order.
func (r *repo) ValidatedEntries(ctx context.Context, db *gorm.DB, offerID snowflake.ID) ([]offerdomain.LedgerEntry, error) {
	quantities, err := participations(db).PluckInt64(ctx, "quantity",
		option.Condition("offer_id = ? AND status = ?", offerID, domain.StatusValidated),
		option.OrderByID(),
	)
	if err != nil {
		return nil, err
	}

	entries := make([]offerdomain.LedgerEntry, 0, len(quantities))
	for _, q := range quantities {
		entries = append(entries, offerdomain.LedgerEntry{Quantity: q})
	}
	return entries, nil
}

type statusTotals struct {
	Status   domain.Status
	Count    int64
	Quantity int64
}

func (r *repo) LedgerBounds(ctx context.Context, db *gorm.DB, offerID snowflake.ID) (offerdomain.LedgerBounds, error) {
	var rows []statusTotals
	err := db.WithContext(ctx).
		Model(&domain.Participation{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(quantity), 0) AS quantity").
		Where("offer_id = ?", offerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return offerdomain.LedgerBounds{}, err
	}

	var bounds offerdomain.LedgerBounds
	for _, row := range rows {
		switch row.Status {
		case domain.StatusCancelled:
			continue
		case domain.StatusValidated:
			bounds.ValidatedCount += row.Count
			bounds.ValidatedQuantity += row.Quantity
		}
		bounds.OpenCount += row.Count
		bounds.OpenQuantity += row.Quantity
	}
	return bounds, nil
}

package domain

import (
	"context"

	"github.com/alimia7/achatons/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, offer *Offer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Offer, error)
	// FindByIDForUpdate reads the offer holding a row lock until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Offer, error)
	UpdateAggregates(ctx context.Context, db *gorm.DB, offer *Offer) error
	UpdateTiers(ctx context.Context, db *gorm.DB, offer *Offer) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Offer, error)
	// ListIDsByStatus pages ids in ascending order starting after afterID.
	ListIDsByStatus(ctx context.Context, db *gorm.DB, status Status, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
}

type ListFilter struct {
	Status     Status
	SupplierID string
	CategoryID string
}

// LedgerReader reads the participation ledger of an offer.
type LedgerReader interface {
	ValidatedEntries(ctx context.Context, db *gorm.DB, offerID snowflake.ID) ([]LedgerEntry, error)
	LedgerBounds(ctx context.Context, db *gorm.DB, offerID snowflake.ID) (LedgerBounds, error)
}

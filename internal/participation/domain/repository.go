package domain

import (
	"context"

	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/alimia7/achatons/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, p *Participation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Participation, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Participation, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, p *Participation) error
	ListByOffer(ctx context.Context, db *gorm.DB, offerID snowflake.ID, status Status, page pagination.Pagination) ([]*Participation, error)
	// ValidatedEntries returns the validated ledger of an offer.
	ValidatedEntries(ctx context.Context, db *gorm.DB, offerID snowflake.ID) ([]offerdomain.LedgerEntry, error)
	// LedgerBounds counts and sums the validated and non-cancelled
	// participations of an offer.
	LedgerBounds(ctx context.Context, db *gorm.DB, offerID snowflake.ID) (offerdomain.LedgerBounds, error)
}

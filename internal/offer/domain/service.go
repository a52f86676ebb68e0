package domain

import (
	"context"
	"errors"
	"time"

	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/alimia7/achatons/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Offer, error)
	Get(ctx context.Context, id string) (*Offer, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	View(ctx context.Context, id string) (*View, error)

	// ApplyParticipation is the fast path run when a participation is
	// submitted. It runs in its own transaction.
	ApplyParticipation(ctx context.Context, offerID string, quantity int64) (*UpdateResult, error)
	// ApplyParticipationTx runs the fast path inside the caller's transaction.
	ApplyParticipationTx(ctx context.Context, tx *gorm.DB, offerID string, quantity int64) (*UpdateResult, error)

	// Recompute rebuilds the aggregates from validated participations.
	Recompute(ctx context.Context, offerID string) (*UpdateResult, error)
	RecomputeTx(ctx context.Context, tx *gorm.DB, offerID string) (*UpdateResult, error)

	// Reconcile recomputes the offer only when its aggregates cannot be
	// explained by its participations. repaired reports whether it did.
	Reconcile(ctx context.Context, offerID string) (res *UpdateResult, repaired bool, err error)

	// NotifyTierUnlocked publishes res if it crossed a tier. Call it only
	// after the transaction that produced res has committed.
	NotifyTierUnlocked(ctx context.Context, res *UpdateResult)
}

type CreateRequest struct {
	Title              string                      `json:"title"`
	Description        string                      `json:"description"`
	SupplierID         string                      `json:"supplier_id"`
	CategoryID         string                      `json:"category_id"`
	BasePrice          int64                       `json:"base_price"`
	Currency           string                      `json:"currency"`
	PricingModel       PricingModel                `json:"pricing_model"`
	Tiers              []pricetierdomain.TierInput `json:"tiers"`
	TargetParticipants int64                       `json:"target_participants"`
	Deadline           *time.Time                  `json:"deadline"`
	Metadata           map[string]any              `json:"metadata"`
}

type ListRequest struct {
	Status     Status `form:"status"`
	SupplierID string `form:"supplier_id"`
	CategoryID string `form:"category_id"`
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
}

type ListResponse struct {
	Offers   []Offer              `json:"offers"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

var (
	ErrNotFound            = errors.New("offer_not_found")
	ErrInvalidID           = errors.New("invalid_offer_id")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidBasePrice    = errors.New("invalid_base_price")
	ErrInvalidPricingModel = errors.New("invalid_pricing_model")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidDeadline     = errors.New("invalid_deadline")
	ErrInvalidTarget       = errors.New("invalid_target_participants")
	ErrTiersNotAllowed     = errors.New("tiers_not_allowed_for_fixed_pricing")
	ErrAggregateOverflow   = errors.New("aggregate_overflow")
)

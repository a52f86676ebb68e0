package domain

import (
	"time"

	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PricingModel string

const (
	PricingModelFixed  PricingModel = "fixed"
	PricingModelTiered PricingModel = "tiered"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// Offer is the aggregate root of a group-buy listing. The aggregate fields
// from CurrentParticipants down to TierHistory are owned by the pricing
// engine and are never edited through the CRUD surface.
type Offer struct {
	ID                 snowflake.ID                                     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title              string                                           `json:"title" gorm:"type:text;not null"`
	Slug               string                                           `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Description        string                                           `json:"description" gorm:"type:text"`
	SupplierID         string                                           `json:"supplier_id" gorm:"type:text;index"`
	CategoryID         string                                           `json:"category_id" gorm:"type:text;index"`
	BasePrice          int64                                            `json:"base_price" gorm:"not null"`
	Currency           string                                           `json:"currency" gorm:"type:text;not null"`
	PricingModel       PricingModel                                     `json:"pricing_model" gorm:"type:text;not null"`
	PricingTiers       datatypes.JSONSlice[pricetierdomain.PricingTier] `json:"pricing_tiers"`
	TargetParticipants int64                                            `json:"target_participants" gorm:"not null;default:0"`
	Deadline           *time.Time                                       `json:"deadline,omitempty"`
	Status             Status                                           `json:"status" gorm:"type:text;not null;index"`
	Metadata           datatypes.JSONMap                                `json:"metadata,omitempty"`

	CurrentParticipants int64                                              `json:"current_participants" gorm:"not null;default:0"`
	TotalQuantity       int64                                              `json:"total_quantity" gorm:"not null;default:0"`
	CurrentTier         int                                                `json:"current_tier" gorm:"not null;default:0"`
	CurrentPrice        int64                                              `json:"current_price" gorm:"not null"`
	NextTierQuantity    *int64                                             `json:"next_tier_quantity"`
	TotalRevenue        int64                                              `json:"total_revenue" gorm:"not null;default:0"`
	TierHistory         datatypes.JSONSlice[pricetierdomain.TierMilestone] `json:"tier_history"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Offer) TableName() string { return "offers" }

func (o *Offer) IsTiered() bool {
	return o.PricingModel == PricingModelTiered
}

// Tiers returns the tier list only when the offer uses tiered pricing.
func (o *Offer) Tiers() []pricetierdomain.PricingTier {
	if !o.IsTiered() {
		return nil
	}
	return o.PricingTiers
}

// AcceptsParticipations reports whether new participations may be submitted
// at now.
func (o *Offer) AcceptsParticipations(now time.Time) bool {
	if o.Status != StatusActive {
		return false
	}
	if o.Deadline != nil && !now.Before(*o.Deadline) {
		return false
	}
	return true
}

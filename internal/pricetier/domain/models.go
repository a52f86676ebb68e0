package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PricingTier is one price break of a tiered offer. MinParticipants is a
// threshold on cumulative ordered units, not on distinct participants.
type PricingTier struct {
	TierNumber         int     `json:"tier_number"`
	MinParticipants    int64   `json:"min_participants"`
	Price              int64   `json:"price"`
	Label              string  `json:"label,omitempty"`
	DiscountPercentage float64 `json:"discount_percentage"`
}

// TierMilestone records the first time a tier was reached. Entries are only
// ever appended to an offer's history.
type TierMilestone struct {
	TierNumber        int       `json:"tier_number"`
	ReachedAt         time.Time `json:"reached_at"`
	ParticipantsCount int64     `json:"participants_count"`
	PriceAtUnlock     int64     `json:"price_at_unlock"`
}

// DiscountPercentage returns (basePrice-price)/basePrice*100 rounded to two
// decimals, or 0 when basePrice is not positive.
func DiscountPercentage(price, basePrice int64) float64 {
	if basePrice <= 0 {
		return 0
	}
	base := decimal.NewFromInt(basePrice)
	pct := base.Sub(decimal.NewFromInt(price)).
		Div(base).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return pct.InexactFloat64()
}

func defaultLabel(tierNumber int) string {
	return fmt.Sprintf("Tier %d", tierNumber)
}

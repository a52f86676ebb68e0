package domain

import (
	"context"
)

type Service interface {
	// ReplaceTiers validates and stores a new tier list on an offer and
	// re-resolves the offer's derived pricing fields in the same transaction.
	ReplaceTiers(ctx context.Context, req ReplaceRequest) (*Response, error)
}

type TierInput struct {
	MinParticipants int64  `json:"min_participants"`
	Price           int64  `json:"price"`
	Label           string `json:"label"`
}

type ReplaceRequest struct {
	OfferID string      `json:"offer_id"`
	Tiers   []TierInput `json:"tiers"`
}

type Response struct {
	OfferID      string        `json:"offer_id"`
	BasePrice    int64         `json:"base_price"`
	Tiers        []PricingTier `json:"tiers"`
	CurrentTier  int           `json:"current_tier"`
	CurrentPrice int64         `json:"current_price"`
	TierUnlocked bool          `json:"tier_unlocked"`
}

// FromInputs converts authoring input into unnumbered tiers ready for
// NormalizeTiers.
func FromInputs(inputs []TierInput) []PricingTier {
	out := make([]PricingTier, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, PricingTier{
			MinParticipants: in.MinParticipants,
			Price:           in.Price,
			Label:           in.Label,
		})
	}
	return out
}

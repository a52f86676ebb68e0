package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxTiers is the authoring ceiling applied when no rule overrides it.
const DefaultMaxTiers = 5

var (
	ErrInvalidTierConfiguration = errors.New("invalid_tier_configuration")

	ErrNoTiers                = errors.New("no_tiers")
	ErrTooManyTiers           = errors.New("too_many_tiers")
	ErrInvalidBasePrice       = errors.New("invalid_base_price")
	ErrInvalidTierThreshold   = errors.New("invalid_tier_threshold")
	ErrInvalidTierPrice       = errors.New("invalid_tier_price")
	ErrThresholdNotIncreasing = errors.New("tier_threshold_not_increasing")
	ErrPriceNotDecreasing     = errors.New("tier_price_not_decreasing")
)

// TierConfigError reports which tier broke an authoring rule. It matches both
// ErrInvalidTierConfiguration and the specific rule error with errors.Is.
type TierConfigError struct {
	TierNumber int
	Err        error
}

func (e *TierConfigError) Error() string {
	if e.TierNumber == 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidTierConfiguration, e.Err)
	}
	return fmt.Sprintf("%s: tier %d: %s", ErrInvalidTierConfiguration, e.TierNumber, e.Err)
}

func (e *TierConfigError) Unwrap() []error {
	return []error{ErrInvalidTierConfiguration, e.Err}
}

func tierError(tierNumber int, err error) error {
	return &TierConfigError{TierNumber: tierNumber, Err: err}
}

// NormalizeTiers assigns sequential tier numbers in list order, fills the
// default label and derives the discount percentage from basePrice.
func NormalizeTiers(tiers []PricingTier, basePrice int64) []PricingTier {
	out := make([]PricingTier, 0, len(tiers))
	for i, t := range tiers {
		t.TierNumber = i + 1
		t.Label = strings.TrimSpace(t.Label)
		if t.Label == "" {
			t.Label = defaultLabel(t.TierNumber)
		}
		t.DiscountPercentage = DiscountPercentage(t.Price, basePrice)
		out = append(out, t)
	}
	return out
}

// ValidateTiers enforces the authoring rules for a tier list in tier order.
// maxTiers <= 0 falls back to DefaultMaxTiers.
func ValidateTiers(tiers []PricingTier, basePrice int64, maxTiers int) error {
	if maxTiers <= 0 {
		maxTiers = DefaultMaxTiers
	}
	if basePrice <= 0 {
		return tierError(0, ErrInvalidBasePrice)
	}
	if len(tiers) == 0 {
		return tierError(0, ErrNoTiers)
	}
	if len(tiers) > maxTiers {
		return tierError(0, fmt.Errorf("%w: %d > %d", ErrTooManyTiers, len(tiers), maxTiers))
	}

	for i, t := range tiers {
		if t.MinParticipants <= 0 {
			return tierError(t.TierNumber, ErrInvalidTierThreshold)
		}
		if t.Price <= 0 || t.Price >= basePrice {
			return tierError(t.TierNumber, ErrInvalidTierPrice)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.MinParticipants <= prev.MinParticipants {
			return tierError(t.TierNumber, ErrThresholdNotIncreasing)
		}
		if t.Price >= prev.Price {
			return tierError(t.TierNumber, ErrPriceNotDecreasing)
		}
	}

	return nil
}

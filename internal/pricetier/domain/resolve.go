package domain

// Resolution is the tier state for a cumulative ordered quantity.
type Resolution struct {
	CurrentTier  int
	CurrentPrice int64
	NextTier     *PricingTier

	// NextTierQuantity is nil once the final tier is reached or when the
	// offer has no tiers.
	NextTierQuantity   *int64
	QuantityToNextTier int64
}

// Resolve returns the highest tier whose threshold totalQuantity has met
// (inclusive) and the unit price in effect. Tiers do not need to be sorted.
// When several reached tiers share a threshold the highest tier number wins.
func Resolve(totalQuantity int64, tiers []PricingTier, basePrice int64) Resolution {
	res := Resolution{CurrentPrice: basePrice}
	if len(tiers) == 0 {
		return res
	}

	for _, t := range tiers {
		if t.MinParticipants <= totalQuantity && t.TierNumber > res.CurrentTier {
			res.CurrentTier = t.TierNumber
			res.CurrentPrice = t.Price
		}
	}

	for i := range tiers {
		if tiers[i].TierNumber != res.CurrentTier+1 {
			continue
		}
		next := tiers[i]
		res.NextTier = &next
		threshold := next.MinParticipants
		res.NextTierQuantity = &threshold
		if remaining := threshold - totalQuantity; remaining > 0 {
			res.QuantityToNextTier = remaining
		}
		break
	}

	return res
}

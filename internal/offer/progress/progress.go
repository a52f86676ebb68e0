// Package progress derives display values from an offer's pricing state.
// Nothing here reads or writes storage.
package progress

import (
	"sort"

	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
)

// Segment is the slice of the progress bar owned by one tier, covering
// ordered units in [Start, End].
type Segment struct {
	TierNumber int     `json:"tier_number"`
	Label      string  `json:"label"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Price      int64   `json:"price"`
	Fill       float64 `json:"fill"`
	Reached    bool    `json:"reached"`
	Active     bool    `json:"active"`
}

type Progress struct {
	CurrentQuantity    int64     `json:"current_quantity"`
	Percent            float64   `json:"percent"`
	Segments           []Segment `json:"segments"`
	QuantityToNextTier int64     `json:"quantity_to_next_tier"`
	NextTierNumber     int       `json:"next_tier_number,omitempty"`
}

// Compute splits [0, final threshold] into one segment per tier and fills
// them from totalQuantity. The active segment is the one still filling.
func Compute(totalQuantity int64, tiers []pricetierdomain.PricingTier, basePrice int64) Progress {
	res := pricetierdomain.Resolve(totalQuantity, tiers, basePrice)
	out := Progress{
		CurrentQuantity:    totalQuantity,
		QuantityToNextTier: res.QuantityToNextTier,
	}
	if res.NextTier != nil {
		out.NextTierNumber = res.NextTier.TierNumber
	}
	if len(tiers) == 0 {
		return out
	}

	sorted := make([]pricetierdomain.PricingTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TierNumber < sorted[j].TierNumber
	})

	var start int64
	out.Segments = make([]Segment, 0, len(sorted))
	for _, t := range sorted {
		end := t.MinParticipants
		seg := Segment{
			TierNumber: t.TierNumber,
			Label:      t.Label,
			Start:      start,
			End:        end,
			Price:      t.Price,
			Fill:       fill(totalQuantity, start, end),
			Reached:    totalQuantity >= end,
		}
		seg.Active = !seg.Reached && totalQuantity >= start
		out.Segments = append(out.Segments, seg)
		if end > start {
			start = end
		}
	}

	final := sorted[len(sorted)-1].MinParticipants
	out.Percent = percent(totalQuantity, final)
	return out
}

func fill(qty, start, end int64) float64 {
	switch {
	case qty >= end:
		return 1
	case qty <= start || end <= start:
		return 0
	default:
		return float64(qty-start) / float64(end-start)
	}
}

func percent(qty, final int64) float64 {
	if final <= 0 || qty >= final {
		return 100
	}
	if qty <= 0 {
		return 0
	}
	return float64(qty) / float64(final) * 100
}

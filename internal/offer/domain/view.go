package domain

import (
	"time"

	"github.com/alimia7/achatons/internal/offer/progress"
)

// View is an offer with its display derivatives.
type View struct {
	Offer    *Offer            `json:"offer"`
	Progress progress.Progress `json:"progress"`
	Nudge    *progress.Message `json:"nudge,omitempty"`
}

// BuildView derives progress and, for tiered offers, the nudge message.
func BuildView(o *Offer, now time.Time, rules progress.NudgeRules) *View {
	v := &View{
		Offer:    o,
		Progress: progress.Compute(o.TotalQuantity, o.Tiers(), o.BasePrice),
	}
	if !o.IsTiered() || len(o.PricingTiers) == 0 {
		return v
	}

	res := o.Resolution()
	msg := progress.Nudge(progress.NudgeInput{
		CurrentQuantity: o.TotalQuantity,
		CurrentTier:     res.CurrentTier,
		NextTier:        res.NextTier,
		CurrentPrice:    res.CurrentPrice,
		Deadline:        o.Deadline,
		Now:             now,
	}, rules)
	v.Nudge = &msg
	return v
}

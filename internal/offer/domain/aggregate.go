package domain

import (
	"time"

	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
)

// UpdateResult tells the caller whether an aggregate update crossed into a
// new tier so follow-up effects (notifications) can run after commit.
type UpdateResult struct {
	OfferID       string `json:"offer_id"`
	TierUnlocked  bool   `json:"tier_unlocked"`
	NewTierNumber int    `json:"new_tier_number"`
	NewPrice      int64  `json:"new_price"`
}

// LedgerBounds summarizes the participations of an offer. Open counts every
// participation that is not cancelled, validated ones included.
type LedgerBounds struct {
	ValidatedCount    int64
	ValidatedQuantity int64
	OpenCount         int64
	OpenQuantity      int64
}

// LedgerEntry is the part of a validated participation the recompute path
// needs.
type LedgerEntry struct {
	Quantity int64
}

// ApplyParticipation adds one participation event of quantity units to the
// aggregates. The participant counter always moves by exactly one. For tiered
// offers the whole incoming quantity is priced at the price resolved after
// the addition. The offer is left untouched when a total would overflow.
func (o *Offer) ApplyParticipation(quantity int64, now time.Time) (UpdateResult, error) {
	if quantity <= 0 {
		return UpdateResult{}, ErrInvalidQuantity
	}
	participants, ok := addQty(o.CurrentParticipants, 1)
	if !ok {
		return UpdateResult{}, ErrAggregateOverflow
	}
	totalQuantity, ok := addQty(o.TotalQuantity, quantity)
	if !ok {
		return UpdateResult{}, ErrAggregateOverflow
	}

	if !o.IsTiered() {
		o.CurrentParticipants = participants
		o.TotalQuantity = totalQuantity
		o.UpdatedAt = now
		return o.result(false), nil
	}

	res := pricetierdomain.Resolve(totalQuantity, o.PricingTiers, o.BasePrice)
	charged, ok := mulQty(res.CurrentPrice, quantity)
	if !ok {
		return UpdateResult{}, ErrAggregateOverflow
	}
	revenue, ok := addQty(o.TotalRevenue, charged)
	if !ok {
		return UpdateResult{}, ErrAggregateOverflow
	}

	previousTier := o.CurrentTier
	o.CurrentParticipants = participants
	o.TotalQuantity = totalQuantity
	o.TotalRevenue = revenue
	o.UpdatedAt = now
	o.applyResolution(res)

	unlocked := res.CurrentTier > previousTier
	if unlocked {
		o.appendMilestone(now)
	}
	return o.result(unlocked), nil
}

// Recompute rebuilds the aggregates from the validated ledger only. Every
// validated unit is priced at the currently resolved price. Calling it again
// with the same ledger leaves the offer unchanged, UpdatedAt included: the
// timestamp only moves when an aggregate does.
func (o *Offer) Recompute(entries []LedgerEntry, now time.Time) (UpdateResult, error) {
	var (
		totalQuantity int64
		ok            bool
	)
	for _, e := range entries {
		if totalQuantity, ok = addQty(totalQuantity, e.Quantity); !ok {
			return UpdateResult{}, ErrAggregateOverflow
		}
	}

	before := o.snapshot()
	previousTier := o.CurrentTier

	var (
		res     pricetierdomain.Resolution
		revenue = o.TotalRevenue
	)
	if o.IsTiered() {
		res = pricetierdomain.Resolve(totalQuantity, o.PricingTiers, o.BasePrice)
		if revenue, ok = mulQty(res.CurrentPrice, totalQuantity); !ok {
			return UpdateResult{}, ErrAggregateOverflow
		}
	}

	o.CurrentParticipants = int64(len(entries))
	o.TotalQuantity = totalQuantity
	if !o.IsTiered() {
		o.touchIfChanged(before, now)
		return o.result(false), nil
	}

	o.applyResolution(res)
	o.TotalRevenue = revenue

	unlocked := res.CurrentTier > previousTier
	if unlocked {
		o.appendMilestone(now)
	}
	o.touchIfChanged(before, now)
	return o.result(unlocked), nil
}

// Reresolve refreshes tier and price from the current total quantity, used
// after the tier list changes. Revenue is left as is.
func (o *Offer) Reresolve(now time.Time) UpdateResult {
	previousTier := o.CurrentTier
	res := pricetierdomain.Resolve(o.TotalQuantity, o.Tiers(), o.BasePrice)
	o.applyResolution(res)
	o.UpdatedAt = now

	unlocked := res.CurrentTier > previousTier
	if unlocked {
		o.appendMilestone(now)
	}
	return o.result(unlocked)
}

// Resolution returns the tier state for the offer's current quantity.
func (o *Offer) Resolution() pricetierdomain.Resolution {
	return pricetierdomain.Resolve(o.TotalQuantity, o.Tiers(), o.BasePrice)
}

// WithinLedger reports whether the aggregates can be explained by the
// participations summarized in b. Every transition rebuilds the aggregates
// from the validated ledger and submissions only add to them, so the counters
// sit between the validated and the non-cancelled totals. Tier state must
// match the total quantity and every counted unit was charged between one
// unit of currency and the base price.
func (o *Offer) WithinLedger(b LedgerBounds) bool {
	if o.CurrentParticipants < b.ValidatedCount || o.CurrentParticipants > b.OpenCount {
		return false
	}
	if o.TotalQuantity < b.ValidatedQuantity || o.TotalQuantity > b.OpenQuantity {
		return false
	}
	if !o.IsTiered() {
		return true
	}

	res := o.Resolution()
	if res.CurrentTier != o.CurrentTier || res.CurrentPrice != o.CurrentPrice {
		return false
	}
	if !sameQuantity(res.NextTierQuantity, o.NextTierQuantity) {
		return false
	}
	if o.TotalRevenue < o.TotalQuantity {
		return false
	}
	if ceiling, ok := mulQty(o.BasePrice, o.TotalQuantity); ok && o.TotalRevenue > ceiling {
		return false
	}
	return true
}

type aggregateSnapshot struct {
	participants  int64
	totalQuantity int64
	tier          int
	price         int64
	next          int64
	hasNext       bool
	revenue       int64
	milestones    int
}

func (o *Offer) snapshot() aggregateSnapshot {
	s := aggregateSnapshot{
		participants:  o.CurrentParticipants,
		totalQuantity: o.TotalQuantity,
		tier:          o.CurrentTier,
		price:         o.CurrentPrice,
		revenue:       o.TotalRevenue,
		milestones:    len(o.TierHistory),
	}
	if o.NextTierQuantity != nil {
		s.next, s.hasNext = *o.NextTierQuantity, true
	}
	return s
}

func (o *Offer) touchIfChanged(before aggregateSnapshot, now time.Time) {
	if o.snapshot() != before {
		o.UpdatedAt = now
	}
}

func sameQuantity(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (o *Offer) applyResolution(res pricetierdomain.Resolution) {
	o.CurrentTier = res.CurrentTier
	o.CurrentPrice = res.CurrentPrice
	o.NextTierQuantity = res.NextTierQuantity
}

func (o *Offer) appendMilestone(now time.Time) {
	o.TierHistory = append(o.TierHistory, pricetierdomain.TierMilestone{
		TierNumber:        o.CurrentTier,
		ReachedAt:         now,
		ParticipantsCount: o.CurrentParticipants,
		PriceAtUnlock:     o.CurrentPrice,
	})
}

func (o *Offer) result(unlocked bool) UpdateResult {
	return UpdateResult{
		OfferID:       o.ID.String(),
		TierUnlocked:  unlocked,
		NewTierNumber: o.CurrentTier,
		NewPrice:      o.CurrentPrice,
	}
}

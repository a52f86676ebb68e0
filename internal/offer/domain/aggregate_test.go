package domain

import (
	"math"
	"math/rand"
	"testing"
	"time"

	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tieredOffer() *Offer {
	return &Offer{
		ID:           42,
		BasePrice:    10000,
		CurrentPrice: 10000,
		PricingModel: PricingModelTiered,
		Status:       StatusActive,
		PricingTiers: []pricetierdomain.PricingTier{
			{TierNumber: 1, MinParticipants: 10, Price: 9000},
			{TierNumber: 2, MinParticipants: 20, Price: 8000},
			{TierNumber: 3, MinParticipants: 50, Price: 7000},
		},
	}
}

func mustApply(t *testing.T, o *Offer, quantity int64, now time.Time) UpdateResult {
	t.Helper()
	res, err := o.ApplyParticipation(quantity, now)
	require.NoError(t, err)
	return res
}

func mustRecompute(t *testing.T, o *Offer, entries []LedgerEntry, now time.Time) UpdateResult {
	t.Helper()
	res, err := o.Recompute(entries, now)
	require.NoError(t, err)
	return res
}

func TestApplyParticipationCrossesFirstTier(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o := tieredOffer()

	res := mustApply(t, o, 10, now)

	assert.True(t, res.TierUnlocked)
	assert.Equal(t, 1, res.NewTierNumber)
	assert.Equal(t, int64(9000), res.NewPrice)
	assert.Equal(t, int64(1), o.CurrentParticipants)
	assert.Equal(t, int64(10), o.TotalQuantity)
	assert.Equal(t, 1, o.CurrentTier)
	assert.Equal(t, int64(9000), o.CurrentPrice)
	assert.Equal(t, int64(90000), o.TotalRevenue)
	require.NotNil(t, o.NextTierQuantity)
	assert.Equal(t, int64(20), *o.NextTierQuantity)
	require.Len(t, o.TierHistory, 1)
	assert.Equal(t, 1, o.TierHistory[0].TierNumber)
	assert.Equal(t, int64(9000), o.TierHistory[0].PriceAtUnlock)
	assert.Equal(t, int64(1), o.TierHistory[0].ParticipantsCount)
	assert.Equal(t, now, o.TierHistory[0].ReachedAt)

	res = mustApply(t, o, 5, now.Add(time.Minute))

	assert.False(t, res.TierUnlocked)
	assert.Equal(t, int64(2), o.CurrentParticipants)
	assert.Equal(t, int64(15), o.TotalQuantity)
	assert.Equal(t, 1, o.CurrentTier)
	assert.Equal(t, int64(135000), o.TotalRevenue)
	assert.Len(t, o.TierHistory, 1)
}

func TestApplyParticipationJumpingTiersLogsOneMilestone(t *testing.T) {
	o := tieredOffer()

	res := mustApply(t, o, 55, time.Now())

	assert.True(t, res.TierUnlocked)
	assert.Equal(t, 3, o.CurrentTier)
	assert.Nil(t, o.NextTierQuantity)
	assert.Equal(t, int64(55*7000), o.TotalRevenue)
	require.Len(t, o.TierHistory, 1)
	assert.Equal(t, 3, o.TierHistory[0].TierNumber)
}

func TestApplyParticipationFixedPricing(t *testing.T) {
	o := &Offer{
		BasePrice:    5000,
		CurrentPrice: 5000,
		PricingModel: PricingModelFixed,
		TotalRevenue: 123,
	}

	res := mustApply(t, o, 3, time.Now())

	assert.False(t, res.TierUnlocked)
	assert.Equal(t, int64(1), o.CurrentParticipants)
	assert.Equal(t, int64(3), o.TotalQuantity)
	assert.Equal(t, 0, o.CurrentTier)
	assert.Equal(t, int64(5000), o.CurrentPrice)
	assert.Equal(t, int64(123), o.TotalRevenue)
	assert.Empty(t, o.TierHistory)
}

func TestRecomputeAfterCancellation(t *testing.T) {
	now := time.Now().UTC()
	o := tieredOffer()
	mustApply(t, o, 10, now)
	mustApply(t, o, 5, now)

	res := mustRecompute(t, o, []LedgerEntry{{Quantity: 5}}, now)

	assert.False(t, res.TierUnlocked)
	assert.Equal(t, int64(1), o.CurrentParticipants)
	assert.Equal(t, int64(5), o.TotalQuantity)
	assert.Equal(t, 0, o.CurrentTier)
	assert.Equal(t, int64(10000), o.CurrentPrice)
	assert.Equal(t, int64(50000), o.TotalRevenue)
	require.NotNil(t, o.NextTierQuantity)
	assert.Equal(t, int64(10), *o.NextTierQuantity)
	assert.Len(t, o.TierHistory, 1)
}

func TestRecomputeRepricesAllValidatedUnits(t *testing.T) {
	o := tieredOffer()

	res := mustRecompute(t, o, []LedgerEntry{{Quantity: 8}, {Quantity: 8}, {Quantity: 8}}, time.Now())

	assert.True(t, res.TierUnlocked)
	assert.Equal(t, 2, o.CurrentTier)
	assert.Equal(t, int64(24*8000), o.TotalRevenue)
	assert.Equal(t, int64(3), o.CurrentParticipants)
	require.Len(t, o.TierHistory, 1)
	assert.Equal(t, int64(3), o.TierHistory[0].ParticipantsCount)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	now := time.Now().UTC()
	ledger := []LedgerEntry{{Quantity: 4}, {Quantity: 9}, {Quantity: 12}}
	o := tieredOffer()

	mustRecompute(t, o, ledger, now)
	first := *o
	first.TierHistory = append(first.TierHistory[:0:0], o.TierHistory...)

	res := mustRecompute(t, o, ledger, now)

	assert.False(t, res.TierUnlocked)
	assert.Equal(t, first.CurrentParticipants, o.CurrentParticipants)
	assert.Equal(t, first.TotalQuantity, o.TotalQuantity)
	assert.Equal(t, first.CurrentTier, o.CurrentTier)
	assert.Equal(t, first.CurrentPrice, o.CurrentPrice)
	assert.Equal(t, first.NextTierQuantity, o.NextTierQuantity)
	assert.Equal(t, first.TotalRevenue, o.TotalRevenue)
	assert.Equal(t, first.TierHistory, o.TierHistory)
}

func TestRecomputeIsOrderIndependent(t *testing.T) {
	now := time.Now().UTC()
	ledger := []LedgerEntry{{Quantity: 1}, {Quantity: 3}, {Quantity: 7}, {Quantity: 11}, {Quantity: 30}}

	baseline := tieredOffer()
	mustRecompute(t, baseline, ledger, now)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]LedgerEntry(nil), ledger...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		o := tieredOffer()
		mustRecompute(t, o, shuffled, now)
		assert.Equal(t, baseline.TotalQuantity, o.TotalQuantity)
		assert.Equal(t, baseline.CurrentTier, o.CurrentTier)
		assert.Equal(t, baseline.CurrentPrice, o.CurrentPrice)
		assert.Equal(t, baseline.TotalRevenue, o.TotalRevenue)
		assert.Equal(t, baseline.TierHistory, o.TierHistory)
	}
}

func TestApplyParticipationOverflowLeavesOfferUntouched(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	o := tieredOffer()
	mustApply(t, o, 60, now)
	o.TotalQuantity = math.MaxInt64 - 5
	before := *o
	before.TierHistory = append(before.TierHistory[:0:0], o.TierHistory...)

	_, err := o.ApplyParticipation(10, now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAggregateOverflow)
	assert.Equal(t, before, *o)
	assert.Equal(t, 3, o.CurrentTier)

	// quantity fits but the revenue product does not
	o = tieredOffer()
	_, err = o.ApplyParticipation(math.MaxInt64/1000, now)
	assert.ErrorIs(t, err, ErrAggregateOverflow)
	assert.Zero(t, o.TotalQuantity)

	_, err = tieredOffer().ApplyParticipation(0, now)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestRecomputeOverflow(t *testing.T) {
	o := tieredOffer()
	_, err := o.Recompute([]LedgerEntry{{Quantity: math.MaxInt64}, {Quantity: 1}}, time.Now())
	assert.ErrorIs(t, err, ErrAggregateOverflow)
	assert.Zero(t, o.TotalQuantity)
	assert.Zero(t, o.CurrentParticipants)
}

func TestRecomputeKeepsUpdatedAtWhenNothingChanges(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ledger := []LedgerEntry{{Quantity: 4}, {Quantity: 9}}
	o := tieredOffer()

	mustRecompute(t, o, ledger, first)
	assert.Equal(t, first, o.UpdatedAt)

	mustRecompute(t, o, ledger, first.Add(time.Hour))
	assert.Equal(t, first, o.UpdatedAt)

	later := first.Add(2 * time.Hour)
	mustRecompute(t, o, append(ledger, LedgerEntry{Quantity: 1}), later)
	assert.Equal(t, later, o.UpdatedAt)
}

func TestWithinLedger(t *testing.T) {
	now := time.Now()
	o := tieredOffer()
	mustApply(t, o, 10, now)

	pending := LedgerBounds{OpenCount: 1, OpenQuantity: 10}
	assert.True(t, o.WithinLedger(pending))

	// every pending unit cancelled: counters exceed what is still open
	assert.False(t, o.WithinLedger(LedgerBounds{}))
	// a validation the aggregates never saw
	assert.False(t, o.WithinLedger(LedgerBounds{ValidatedCount: 2, ValidatedQuantity: 12, OpenCount: 2, OpenQuantity: 12}))

	drifted := *o
	drifted.CurrentTier = 0
	assert.False(t, drifted.WithinLedger(pending))

	drifted = *o
	drifted.TotalRevenue = 1
	assert.False(t, drifted.WithinLedger(pending))

	drifted = *o
	drifted.TotalRevenue = 10*10000 + 1
	assert.False(t, drifted.WithinLedger(pending))

	fixed := &Offer{BasePrice: 500, CurrentPrice: 500, PricingModel: PricingModelFixed}
	mustApply(t, fixed, 3, now)
	assert.True(t, fixed.WithinLedger(LedgerBounds{OpenCount: 1, OpenQuantity: 3}))
}

func TestReresolveAfterTierChange(t *testing.T) {
	o := tieredOffer()
	mustApply(t, o, 12, time.Now())
	revenue := o.TotalRevenue

	o.PricingTiers = pricetierdomain.NormalizeTiers([]pricetierdomain.PricingTier{
		{MinParticipants: 5, Price: 9500},
		{MinParticipants: 12, Price: 8800},
	}, o.BasePrice)
	res := o.Reresolve(time.Now())

	assert.True(t, res.TierUnlocked)
	assert.Equal(t, 2, o.CurrentTier)
	assert.Equal(t, int64(8800), o.CurrentPrice)
	assert.Nil(t, o.NextTierQuantity)
	assert.Equal(t, revenue, o.TotalRevenue)
}

func TestAcceptsParticipations(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Offer{Status: StatusActive}).AcceptsParticipations(now))
	assert.True(t, (&Offer{Status: StatusActive, Deadline: &future}).AcceptsParticipations(now))
	assert.False(t, (&Offer{Status: StatusActive, Deadline: &past}).AcceptsParticipations(now))
	assert.False(t, (&Offer{Status: StatusClosed}).AcceptsParticipations(now))
}

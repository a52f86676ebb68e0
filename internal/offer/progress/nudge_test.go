package progress

import (
	"testing"
	"time"

	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNudge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	far := now.Add(10 * 24 * time.Hour)
	soon := now.Add(30 * time.Hour)
	next := &pricetierdomain.PricingTier{TierNumber: 2, MinParticipants: 20, Price: 8000}

	cases := []struct {
		name     string
		in       NudgeInput
		class    MessageClass
		text     string
		daysLeft int
	}{
		{
			name:     "final tier",
			in:       NudgeInput{CurrentQuantity: 60, CurrentTier: 3, CurrentPrice: 7000, Deadline: &far, Now: now},
			class:    ClassFinalTierReached,
			text:     "Palier final atteint ! Vous payez le meilleur prix : 7 000 FCFA.",
			daysLeft: 10,
		},
		{
			name:     "urgent deadline",
			in:       NudgeInput{CurrentQuantity: 12, CurrentTier: 1, NextTier: next, CurrentPrice: 9000, Deadline: &soon, Now: now},
			class:    ClassUrgentDeadline,
			text:     "Plus que 2 jours ! Encore 8 unités pour passer à 8 000 FCFA.",
			daysLeft: 2,
		},
		{
			name:     "single unit",
			in:       NudgeInput{CurrentQuantity: 19, CurrentTier: 1, NextTier: next, CurrentPrice: 9000, Deadline: &far, Now: now},
			class:    ClassSingleUnitRemaining,
			text:     "Plus qu'une unité pour débloquer le prix de 8 000 FCFA !",
			daysLeft: 10,
		},
		{
			name:     "few units",
			in:       NudgeInput{CurrentQuantity: 16, CurrentTier: 1, NextTier: next, CurrentPrice: 9000, Deadline: &far, Now: now},
			class:    ClassFewUnitsRemaining,
			text:     "Plus que 4 unités pour débloquer le prix de 8 000 FCFA !",
			daysLeft: 10,
		},
		{
			name:     "generic",
			in:       NudgeInput{CurrentQuantity: 10, CurrentTier: 1, NextTier: next, CurrentPrice: 9000, Deadline: &far, Now: now},
			class:    ClassMotivating,
			text:     "Encore 10 unités pour économiser 1 000 FCFA par unité.",
			daysLeft: 10,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := Nudge(tc.in, DefaultNudgeRules())
			assert.Equal(t, tc.class, msg.Class)
			assert.Equal(t, tc.text, msg.Text)
			require.NotNil(t, msg.DaysLeft)
			assert.Equal(t, tc.daysLeft, *msg.DaysLeft)
		})
	}
}

func TestNudgeWithoutDeadline(t *testing.T) {
	next := &pricetierdomain.PricingTier{TierNumber: 1, MinParticipants: 10, Price: 9000}
	msg := Nudge(NudgeInput{CurrentQuantity: 0, NextTier: next, CurrentPrice: 10000, Now: time.Now()}, NudgeRules{})

	assert.Nil(t, msg.DaysLeft)
	assert.Equal(t, ClassMotivating, msg.Class)
	assert.Equal(t, int64(10), msg.RemainingUnits)
}

func TestNudgeLastDay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	next := &pricetierdomain.PricingTier{TierNumber: 1, MinParticipants: 10, Price: 9000}

	msg := Nudge(NudgeInput{CurrentQuantity: 9, NextTier: next, CurrentPrice: 10000, Deadline: &past, Now: now}, DefaultNudgeRules())
	assert.Equal(t, ClassUrgentDeadline, msg.Class)
	assert.Equal(t, "Dernier jour ! Encore 1 unité pour passer à 9 000 FCFA.", msg.Text)
}

package progress

import (
	"fmt"
	"math"
	"strings"
	"time"

	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/dustin/go-humanize"
)

type MessageClass string

const (
	ClassFinalTierReached    MessageClass = "final_tier_reached"
	ClassUrgentDeadline      MessageClass = "urgent_deadline"
	ClassSingleUnitRemaining MessageClass = "single_unit_remaining"
	ClassFewUnitsRemaining   MessageClass = "few_units_remaining"
	ClassMotivating          MessageClass = "generic_motivating"
)

type NudgeInput struct {
	CurrentQuantity int64
	CurrentTier     int
	NextTier        *pricetierdomain.PricingTier
	CurrentPrice    int64
	Deadline        *time.Time
	Now             time.Time
}

type NudgeRules struct {
	UrgentDays        int
	FewUnitsThreshold int64
	CurrencyLabel     string
}

func DefaultNudgeRules() NudgeRules {
	return NudgeRules{
		UrgentDays:        2,
		FewUnitsThreshold: 5,
		CurrencyLabel:     "FCFA",
	}
}

type Message struct {
	Class          MessageClass `json:"class"`
	Text           string       `json:"text"`
	DaysLeft       *int         `json:"days_left,omitempty"`
	RemainingUnits int64        `json:"remaining_units"`
}

// Nudge picks the message shown under a tiered offer's progress bar.
// Precedence: final tier, urgent deadline, one unit left, few units left,
// then the generic message.
func Nudge(in NudgeInput, rules NudgeRules) Message {
	rules = rules.withDefaults()
	msg := Message{DaysLeft: daysLeft(in.Deadline, in.Now)}

	if in.NextTier == nil {
		msg.Class = ClassFinalTierReached
		msg.Text = fmt.Sprintf("Palier final atteint ! Vous payez le meilleur prix : %s.",
			formatAmount(in.CurrentPrice, rules.CurrencyLabel))
		return msg
	}

	remaining := in.NextTier.MinParticipants - in.CurrentQuantity
	if remaining < 0 {
		remaining = 0
	}
	msg.RemainingUnits = remaining
	nextPrice := formatAmount(in.NextTier.Price, rules.CurrencyLabel)

	switch {
	case msg.DaysLeft != nil && *msg.DaysLeft <= rules.UrgentDays:
		msg.Class = ClassUrgentDeadline
		msg.Text = fmt.Sprintf("%s Encore %s pour passer à %s.",
			urgencyPrefix(*msg.DaysLeft), units(remaining), nextPrice)
	case remaining == 1:
		msg.Class = ClassSingleUnitRemaining
		msg.Text = fmt.Sprintf("Plus qu'une unité pour débloquer le prix de %s !", nextPrice)
	case remaining <= rules.FewUnitsThreshold:
		msg.Class = ClassFewUnitsRemaining
		msg.Text = fmt.Sprintf("Plus que %s pour débloquer le prix de %s !", units(remaining), nextPrice)
	default:
		msg.Class = ClassMotivating
		saving := in.CurrentPrice - in.NextTier.Price
		msg.Text = fmt.Sprintf("Encore %s pour économiser %s par unité.",
			units(remaining), formatAmount(saving, rules.CurrencyLabel))
	}
	return msg
}

func (r NudgeRules) withDefaults() NudgeRules {
	defaults := DefaultNudgeRules()
	if r.UrgentDays < 0 {
		r.UrgentDays = defaults.UrgentDays
	}
	if r.FewUnitsThreshold <= 0 {
		r.FewUnitsThreshold = defaults.FewUnitsThreshold
	}
	if strings.TrimSpace(r.CurrencyLabel) == "" {
		r.CurrencyLabel = defaults.CurrencyLabel
	}
	return r
}

// daysLeft rounds up to whole days and never goes below zero.
func daysLeft(deadline *time.Time, now time.Time) *int {
	if deadline == nil {
		return nil
	}
	remaining := deadline.Sub(now)
	days := 0
	if remaining > 0 {
		days = int(math.Ceil(remaining.Hours() / 24))
	}
	return &days
}

func urgencyPrefix(days int) string {
	switch days {
	case 0:
		return "Dernier jour !"
	case 1:
		return "Plus qu'un jour !"
	default:
		return fmt.Sprintf("Plus que %d jours !", days)
	}
}

func units(n int64) string {
	if n <= 1 {
		return fmt.Sprintf("%d unité", n)
	}
	return fmt.Sprintf("%d unités", n)
}

func formatAmount(amount int64, currency string) string {
	return strings.ReplaceAll(humanize.Comma(amount), ",", " ") + " " + currency
}

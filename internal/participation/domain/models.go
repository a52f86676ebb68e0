package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusCancelled Status = "cancelled"
)

// Participation is one buyer's order on an offer. Only validated rows count
// toward the recomputed aggregates.
type Participation struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OfferID           snowflake.ID `json:"offer_id" gorm:"not null;index:idx_participations_offer_status,priority:1"`
	UserID            string       `json:"user_id" gorm:"type:text;not null;index"`
	Quantity          int64        `json:"quantity" gorm:"not null"`
	Status            Status       `json:"status" gorm:"type:text;not null;index:idx_participations_offer_status,priority:2"`
	UnitPriceAtSubmit int64        `json:"unit_price_at_submit" gorm:"not null;default:0"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null"`
	ValidatedAt       *time.Time   `json:"validated_at,omitempty"`
	CancelledAt       *time.Time   `json:"cancelled_at,omitempty"`
}

func (Participation) TableName() string { return "participations" }

var transitions = map[Status][]Status{
	StatusPending:   {StatusValidated, StatusCancelled},
	StatusValidated: {StatusCancelled},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the participation to next and stamps the matching
// timestamp.
func (p *Participation) TransitionTo(next Status, now time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	p.Status = next
	p.UpdatedAt = now
	switch next {
	case StatusValidated:
		p.ValidatedAt = &now
	case StatusCancelled:
		p.CancelledAt = &now
	}
	return nil
}

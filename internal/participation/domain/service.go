package domain

import (
	"context"
	"errors"

	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/alimia7/achatons/pkg/db/pagination"
)

type Service interface {
	// Submit records a pending participation and applies it to the offer
	// aggregates in the same transaction.
	Submit(ctx context.Context, req SubmitRequest) (*Response, error)
	// Validate and Cancel change status and recompute the offer from its
	// validated ledger in the same transaction.
	Validate(ctx context.Context, id string) (*Response, error)
	Cancel(ctx context.Context, id string) (*Response, error)
	ListByOffer(ctx context.Context, req ListRequest) (ListResponse, error)
}

type SubmitRequest struct {
	OfferID  string `json:"offer_id"`
	UserID   string `json:"user_id"`
	Quantity int64  `json:"quantity"`
}

type Response struct {
	Participation *Participation            `json:"participation"`
	Offer         *offerdomain.UpdateResult `json:"offer"`
}

type ListRequest struct {
	OfferID   string `form:"-"`
	Status    Status `form:"status"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type ListResponse struct {
	Participations []Participation      `json:"participations"`
	PageInfo       *pagination.PageInfo `json:"page_info"`
}

var (
	ErrNotFound          = errors.New("participation_not_found")
	ErrInvalidID         = errors.New("invalid_participation_id")
	ErrInvalidUser       = errors.New("invalid_user_id")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrOfferClosed       = errors.New("offer_closed")
)

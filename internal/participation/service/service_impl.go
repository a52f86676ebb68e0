package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alimia7/achatons/internal/clock"
	"github.com/alimia7/achatons/internal/config"
	"github.com/alimia7/achatons/internal/observability/logger"
	"github.com/alimia7/achatons/internal/observability/metrics"
	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/alimia7/achatons/internal/participation/domain"
	"github.com/alimia7/achatons/pkg/db"
	"github.com/alimia7/achatons/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Tx        *db.Transactor
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	OfferRepo offerdomain.Repository
	OfferSvc  offerdomain.Service
	Rules     *config.PricingRulesHolder
	Metrics   *metrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	tx        *db.Transactor
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	offerRepo offerdomain.Repository
	offerSvc  offerdomain.Service
	rules     *config.PricingRulesHolder
	metrics   *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		tx:        p.Tx,
		log:       p.Log.Named("participation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		offerRepo: p.OfferRepo,
		offerSvc:  p.OfferSvc,
		rules:     p.Rules,
		metrics:   p.Metrics,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (resp *domain.Response, err error) {
	offerID, err := snowflake.ParseString(strings.TrimSpace(req.OfferID))
	if err != nil || offerID == 0 {
		return nil, offerdomain.ErrInvalidID
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || quantity > s.rules.Get().MaxParticipationQuantity {
		return nil, domain.ErrInvalidQuantity
	}

	var (
		participation *domain.Participation
		result        *offerdomain.UpdateResult
	)
	start := time.Now()
	defer func() { s.metrics.ObserveUpdate(metrics.PathFastPath, time.Since(start), err) }()

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		now := s.clock.Now()
		offer, err := s.offerRepo.FindByIDForUpdate(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if offer == nil {
			return offerdomain.ErrNotFound
		}
		if !offer.AcceptsParticipations(now) {
			return domain.ErrOfferClosed
		}

		res, err := s.offerSvc.ApplyParticipationTx(ctx, tx, offerID.String(), quantity)
		if err != nil {
			return err
		}

		p := &domain.Participation{
			ID:                s.genID.Generate(),
			OfferID:           offerID,
			UserID:            userID,
			Quantity:          quantity,
			Status:            domain.StatusPending,
			UnitPriceAtSubmit: res.NewPrice,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.repo.Insert(ctx, tx, p); err != nil {
			return fmt.Errorf("insert participation: %w", err)
		}

		participation = p
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddUnits(quantity)
	s.offerSvc.NotifyTierUnlocked(ctx, result)
	logger.WithContext(ctx, s.log).Info("participation submitted",
		zap.String("participation_id", participation.ID.String()),
		zap.String("offer_id", offerID.String()),
		zap.Int64("quantity", quantity),
	)
	return &domain.Response{Participation: participation, Offer: result}, nil
}

func (s *Service) Validate(ctx context.Context, id string) (*domain.Response, error) {
	return s.transition(ctx, id, domain.StatusValidated)
}

func (s *Service) Cancel(ctx context.Context, id string) (*domain.Response, error) {
	return s.transition(ctx, id, domain.StatusCancelled)
}

// transition changes the participation status and rebuilds the offer from its
// validated ledger under the same transaction.
func (s *Service) transition(ctx context.Context, id string, next domain.Status) (resp *domain.Response, err error) {
	participationID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.metrics.ObserveUpdate(metrics.PathRecompute, time.Since(start), err) }()

	var (
		participation *domain.Participation
		result        *offerdomain.UpdateResult
	)
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		p, err := s.repo.FindByIDForUpdate(ctx, tx, participationID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound
		}
		if err := p.TransitionTo(next, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tx, p); err != nil {
			return fmt.Errorf("update participation status: %w", err)
		}

		res, err := s.offerSvc.RecomputeTx(ctx, tx, p.OfferID.String())
		if err != nil {
			return err
		}

		participation = p
		result = res
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInvalidTransition) {
			logger.WithContext(ctx, s.log).Error("participation transition failed",
				zap.String("participation_id", id),
				zap.String("status", string(next)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.offerSvc.NotifyTierUnlocked(ctx, result)
	logger.WithContext(ctx, s.log).Info("participation status changed",
		zap.String("participation_id", id),
		zap.String("offer_id", participation.OfferID.String()),
		zap.String("status", string(next)),
	)
	return &domain.Response{Participation: participation, Offer: result}, nil
}

func (s *Service) ListByOffer(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	offerID, err := snowflake.ParseString(strings.TrimSpace(req.OfferID))
	if err != nil || offerID == 0 {
		return domain.ListResponse{}, offerdomain.ErrInvalidID
	}

	status := domain.Status(strings.ToLower(strings.TrimSpace(string(req.Status))))
	switch status {
	case "", domain.StatusPending, domain.StatusValidated, domain.StatusCancelled:
	default:
		return domain.ListResponse{}, domain.ErrInvalidStatus
	}

	offer, err := s.offerRepo.FindByID(ctx, s.db, offerID)
	if err != nil {
		return domain.ListResponse{}, err
	}
	if offer == nil {
		return domain.ListResponse{}, offerdomain.ErrNotFound
	}

	page := pagination.Pagination{
		PageToken: strings.TrimSpace(req.PageToken),
		PageSize:  req.PageSize,
	}
	items, err := s.repo.ListByOffer(ctx, s.db, offerID, status, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageSize := page.Size()
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(p *domain.Participation) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: p.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	participations := make([]domain.Participation, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		participations = append(participations, *item)
	}
	return domain.ListResponse{Participations: participations, PageInfo: pageInfo}, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

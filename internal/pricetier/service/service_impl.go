package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alimia7/achatons/internal/clock"
	"github.com/alimia7/achatons/internal/config"
	"github.com/alimia7/achatons/internal/observability/metrics"
	"github.com/alimia7/achatons/internal/observability/tracing"
	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/alimia7/achatons/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Tx        *db.Transactor
	Log       *zap.Logger
	Clock     clock.Clock
	Rules     *config.PricingRulesHolder
	OfferRepo offerdomain.Repository
	OfferSvc  offerdomain.Service
	Metrics   *metrics.EngineMetrics `optional:"true"`
}

type Service struct {
	tx        *db.Transactor
	log       *zap.Logger
	clock     clock.Clock
	rules     *config.PricingRulesHolder
	offerRepo offerdomain.Repository
	offerSvc  offerdomain.Service
	metrics   *metrics.EngineMetrics
}

func New(p Params) pricetierdomain.Service {
	return &Service{
		tx:        p.Tx,
		log:       p.Log.Named("pricetier.service"),
		clock:     p.Clock,
		rules:     p.Rules,
		offerRepo: p.OfferRepo,
		offerSvc:  p.OfferSvc,
		metrics:   p.Metrics,
	}
}

// ReplaceTiers swaps the tier list of a tiered offer. Current tier, price and
// next threshold are re-resolved from the existing total quantity; revenue
// already booked is not repriced.
func (s *Service) ReplaceTiers(ctx context.Context, req pricetierdomain.ReplaceRequest) (resp *pricetierdomain.Response, err error) {
	ctx, span := tracing.StartSpan(ctx, "pricetier.replace_tiers",
		attribute.String("offer_id", req.OfferID),
		attribute.Int("tiers", len(req.Tiers)),
	)
	start := time.Now()
	defer func() {
		s.metrics.ObserveUpdate(metrics.PathTiers, time.Since(start), err)
		tracing.EndSpan(span, err)
	}()

	offerID, err := snowflake.ParseString(strings.TrimSpace(req.OfferID))
	if err != nil || offerID == 0 {
		return nil, offerdomain.ErrInvalidID
	}
	maxTiers := s.rules.Get().MaxTiers

	var (
		offer  *offerdomain.Offer
		result offerdomain.UpdateResult
	)
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		found, err := s.offerRepo.FindByIDForUpdate(ctx, tx, offerID)
		if err != nil {
			return err
		}
		if found == nil {
			return offerdomain.ErrNotFound
		}
		if !found.IsTiered() {
			return offerdomain.ErrTiersNotAllowed
		}

		tiers := pricetierdomain.NormalizeTiers(pricetierdomain.FromInputs(req.Tiers), found.BasePrice)
		if err := pricetierdomain.ValidateTiers(tiers, found.BasePrice, maxTiers); err != nil {
			return err
		}

		found.PricingTiers = tiers
		result = found.Reresolve(s.clock.Now())
		if err := s.offerRepo.UpdateTiers(ctx, tx, found); err != nil {
			return fmt.Errorf("update tiers: %w", err)
		}
		offer = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tiers replaced",
		zap.String("offer_id", offer.ID.String()),
		zap.Int("tiers", len(offer.PricingTiers)),
		zap.Int("current_tier", offer.CurrentTier),
	)
	s.offerSvc.NotifyTierUnlocked(ctx, &result)

	return &pricetierdomain.Response{
		OfferID:      offer.ID.String(),
		BasePrice:    offer.BasePrice,
		Tiers:        offer.PricingTiers,
		CurrentTier:  offer.CurrentTier,
		CurrentPrice: offer.CurrentPrice,
		TierUnlocked: result.TierUnlocked,
	}, nil
}

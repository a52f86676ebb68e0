package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alimia7/achatons/internal/clock"
	"github.com/alimia7/achatons/internal/config"
	"github.com/alimia7/achatons/internal/notification"
	"github.com/alimia7/achatons/internal/observability/logger"
	"github.com/alimia7/achatons/internal/observability/metrics"
	"github.com/alimia7/achatons/internal/observability/tracing"
	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/alimia7/achatons/internal/offer/progress"
	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/alimia7/achatons/pkg/db"
	"github.com/alimia7/achatons/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultCurrency = "XOF"
	notifyTimeout   = 2 * time.Second
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Tx       *db.Transactor
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     offerdomain.Repository
	Ledger   offerdomain.LedgerReader
	Rules    *config.PricingRulesHolder
	Notifier notification.Notifier
	Metrics  *metrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	tx       *db.Transactor
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     offerdomain.Repository
	ledger   offerdomain.LedgerReader
	rules    *config.PricingRulesHolder
	notifier notification.Notifier
	metrics  *metrics.EngineMetrics
}

func New(p Params) offerdomain.Service {
	return &Service{
		db:       p.DB,
		tx:       p.Tx,
		log:      p.Log.Named("offer.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		ledger:   p.Ledger,
		rules:    p.Rules,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req offerdomain.CreateRequest) (*offerdomain.Offer, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, offerdomain.ErrInvalidTitle
	}
	if req.BasePrice <= 0 {
		return nil, offerdomain.ErrInvalidBasePrice
	}
	if req.TargetParticipants < 0 {
		return nil, offerdomain.ErrInvalidTarget
	}

	now := s.clock.Now()
	if req.Deadline != nil && !req.Deadline.After(now) {
		return nil, offerdomain.ErrInvalidDeadline
	}

	model, err := pricingModel(req.PricingModel, len(req.Tiers))
	if err != nil {
		return nil, err
	}

	var tiers []pricetierdomain.PricingTier
	if model == offerdomain.PricingModelTiered {
		tiers = pricetierdomain.NormalizeTiers(pricetierdomain.FromInputs(req.Tiers), req.BasePrice)
		if err := pricetierdomain.ValidateTiers(tiers, req.BasePrice, s.rules.Get().MaxTiers); err != nil {
			return nil, err
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	id := s.genID.Generate()
	offer := &offerdomain.Offer{
		ID:                 id,
		Title:              title,
		Slug:               slug.Make(title) + "-" + id.String(),
		Description:        strings.TrimSpace(req.Description),
		SupplierID:         strings.TrimSpace(req.SupplierID),
		CategoryID:         strings.TrimSpace(req.CategoryID),
		BasePrice:          req.BasePrice,
		Currency:           currency,
		PricingModel:       model,
		PricingTiers:       tiers,
		TargetParticipants: req.TargetParticipants,
		Deadline:           req.Deadline,
		Status:             offerdomain.StatusActive,
		Metadata:           datatypes.JSONMap(req.Metadata),
		CurrentPrice:       req.BasePrice,
		CreatedAt:          now,
	}
	offer.Reresolve(now)

	if err := s.repo.Insert(ctx, s.db, offer); err != nil {
		return nil, fmt.Errorf("insert offer: %w", err)
	}

	s.log.Info("offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("pricing_model", string(offer.PricingModel)),
		zap.Int("tiers", len(offer.PricingTiers)),
	)
	return offer, nil
}

func pricingModel(model offerdomain.PricingModel, tierCount int) (offerdomain.PricingModel, error) {
	switch offerdomain.PricingModel(strings.ToLower(strings.TrimSpace(string(model)))) {
	case "":
		if tierCount > 0 {
			return offerdomain.PricingModelTiered, nil
		}
		return offerdomain.PricingModelFixed, nil
	case offerdomain.PricingModelFixed:
		if tierCount > 0 {
			return "", offerdomain.ErrTiersNotAllowed
		}
		return offerdomain.PricingModelFixed, nil
	case offerdomain.PricingModelTiered:
		return offerdomain.PricingModelTiered, nil
	default:
		return "", offerdomain.ErrInvalidPricingModel
	}
}

func (s *Service) Get(ctx context.Context, id string) (*offerdomain.Offer, error) {
	offerID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	offer, err := s.repo.FindByID(ctx, s.db, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, offerdomain.ErrNotFound
	}
	return offer, nil
}

func (s *Service) List(ctx context.Context, req offerdomain.ListRequest) (offerdomain.ListResponse, error) {
	page := pagination.Pagination{
		PageToken: strings.TrimSpace(req.PageToken),
		PageSize:  req.PageSize,
	}
	filter := offerdomain.ListFilter{
		Status:     offerdomain.Status(strings.ToLower(strings.TrimSpace(string(req.Status)))),
		SupplierID: req.SupplierID,
		CategoryID: req.CategoryID,
	}

	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return offerdomain.ListResponse{}, err
	}

	pageSize := page.Size()
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(o *offerdomain.Offer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: o.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	offers := make([]offerdomain.Offer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		offers = append(offers, *item)
	}
	return offerdomain.ListResponse{Offers: offers, PageInfo: pageInfo}, nil
}

func (s *Service) View(ctx context.Context, id string) (*offerdomain.View, error) {
	offer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rules := s.rules.Get()
	return offerdomain.BuildView(offer, s.clock.Now(), progress.NudgeRules{
		UrgentDays:        rules.UrgentDays,
		FewUnitsThreshold: rules.FewUnitsThreshold,
		CurrencyLabel:     rules.CurrencyLabel,
	}), nil
}

func (s *Service) ApplyParticipation(ctx context.Context, offerID string, quantity int64) (res *offerdomain.UpdateResult, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveUpdate(metrics.PathFastPath, time.Since(start), err) }()

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.ApplyParticipationTx(ctx, tx, offerID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddUnits(quantity)
	s.NotifyTierUnlocked(ctx, res)
	return res, nil
}

// ApplyParticipationTx locks the offer row, adds the participation to the
// aggregates and writes them back. tx must be a transaction. Metrics are left
// to the caller, which sees the committed outcome rather than each attempt.
func (s *Service) ApplyParticipationTx(ctx context.Context, tx *gorm.DB, offerID string, quantity int64) (res *offerdomain.UpdateResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "offer.apply_participation",
		attribute.String("offer_id", offerID),
		attribute.Int64("quantity", quantity),
	)
	defer func() { tracing.EndSpan(span, err) }()

	id, err := parseID(offerID)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 || quantity > s.rules.Get().MaxParticipationQuantity {
		return nil, offerdomain.ErrInvalidQuantity
	}

	offer, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, offerdomain.ErrNotFound
	}

	result, err := offer.ApplyParticipation(quantity, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAggregates(ctx, tx, offer); err != nil {
		return nil, fmt.Errorf("update offer aggregates: %w", err)
	}

	logger.WithContext(ctx, s.log).Debug("participation applied",
		zap.String("offer_id", offerID),
		zap.Int64("quantity", quantity),
		zap.Int64("total_quantity", offer.TotalQuantity),
		zap.Int("tier", offer.CurrentTier),
	)
	return &result, nil
}

func (s *Service) Recompute(ctx context.Context, offerID string) (res *offerdomain.UpdateResult, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveUpdate(metrics.PathRecompute, time.Since(start), err) }()

	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		var err error
		res, err = s.RecomputeTx(ctx, tx, offerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.NotifyTierUnlocked(ctx, res)
	return res, nil
}

// RecomputeTx rebuilds the aggregates from the validated ledger while holding
// the offer row lock. The ledger is read inside tx so it is consistent with
// the aggregates written back.
func (s *Service) RecomputeTx(ctx context.Context, tx *gorm.DB, offerID string) (res *offerdomain.UpdateResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "offer.recompute", attribute.String("offer_id", offerID))
	defer func() { tracing.EndSpan(span, err) }()

	id, err := parseID(offerID)
	if err != nil {
		return nil, err
	}

	offer, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, offerdomain.ErrNotFound
	}
	return s.recomputeLocked(ctx, tx, offer)
}

func (s *Service) recomputeLocked(ctx context.Context, tx *gorm.DB, offer *offerdomain.Offer) (*offerdomain.UpdateResult, error) {
	entries, err := s.ledger.ValidatedEntries(ctx, tx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	result, err := offer.Recompute(entries, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAggregates(ctx, tx, offer); err != nil {
		return nil, fmt.Errorf("update offer aggregates: %w", err)
	}

	logger.WithContext(ctx, s.log).Debug("offer recomputed",
		zap.String("offer_id", offer.ID.String()),
		zap.Int("entries", len(entries)),
		zap.Int64("total_quantity", offer.TotalQuantity),
		zap.Int("tier", offer.CurrentTier),
	)
	return &result, nil
}

// Reconcile leaves offers whose aggregates the ledger explains alone. Pending
// units counted by the fast path are part of that explanation, so a healthy
// offer keeps its displayed price between validations.
func (s *Service) Reconcile(ctx context.Context, offerID string) (res *offerdomain.UpdateResult, repaired bool, err error) {
	id, err := parseID(offerID)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		res, repaired = nil, false

		offer, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if offer == nil {
			return offerdomain.ErrNotFound
		}

		bounds, err := s.ledger.LedgerBounds(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("read ledger bounds: %w", err)
		}
		if offer.WithinLedger(bounds) {
			return nil
		}

		res, err = s.recomputeLocked(ctx, tx, offer)
		repaired = err == nil
		return err
	})
	if err != nil {
		s.metrics.ObserveUpdate(metrics.PathRecompute, time.Since(start), err)
		return nil, false, err
	}
	if !repaired {
		return nil, false, nil
	}

	s.metrics.ObserveUpdate(metrics.PathRecompute, time.Since(start), nil)
	logger.WithContext(ctx, s.log).Warn("offer aggregates repaired", zap.String("offer_id", offerID))
	s.NotifyTierUnlocked(ctx, res)
	return res, true, nil
}

func (s *Service) NotifyTierUnlocked(ctx context.Context, res *offerdomain.UpdateResult) {
	if res == nil || !res.TierUnlocked {
		return
	}

	s.metrics.IncTierUnlock()
	log := logger.WithContext(ctx, s.log)
	log.Info("tier unlocked",
		zap.String("offer_id", res.OfferID),
		zap.Int("tier", res.NewTierNumber),
		zap.Int64("price", res.NewPrice),
	)

	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyTierUnlocked(notifyCtx, notification.FromUpdate(*res, s.clock.Now())); err != nil {
		s.metrics.IncNotifyFailure()
		log.Warn("tier unlock notification failed", zap.String("offer_id", res.OfferID), zap.Error(err))
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, offerdomain.ErrInvalidID
	}
	return id, nil
}

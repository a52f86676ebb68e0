package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alimia7/achatons/internal/clock"
	"github.com/alimia7/achatons/internal/observability/metrics"
	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jobName = "reconcile_offers"

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Config    Config
	Lock      Lock
	OfferRepo offerdomain.Repository
	OfferSvc  offerdomain.Service
	Metrics   *metrics.JobMetrics `optional:"true"`
}

// Worker periodically checks active offers against their participations and
// rebuilds from the validated ledger only those whose aggregates drifted.
// Healthy offers keep the pending units the fast path counted.
type Worker struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	cfg       Config
	lock      Lock
	offerRepo offerdomain.Repository
	offerSvc  offerdomain.Service
	metrics   *metrics.JobMetrics
}

func New(p Params) *Worker {
	return &Worker{
		db:        p.DB,
		log:       p.Log.Named("reconcile").With(zap.String("component", "reconcile")),
		clock:     p.Clock,
		cfg:       p.Config.withDefaults(),
		lock:      p.Lock,
		offerRepo: p.OfferRepo,
		offerSvc:  p.OfferSvc,
		metrics:   p.Metrics,
	}
}

// RunOnce walks every active offer in id order and returns how many it
// checked. An error on one offer is recorded and the pass continues.
func (w *Worker) RunOnce(ctx context.Context) (processed int, err error) {
	start := w.clock.Now()
	repaired := 0
	w.metrics.IncRun(jobName)
	defer func() {
		w.metrics.ObserveDuration(jobName, w.clock.Now().Sub(start))
		w.metrics.AddProcessed(jobName, "offer", processed)
		w.metrics.AddProcessed(jobName, "offer_repaired", repaired)
		if err != nil {
			w.metrics.IncError(jobName, err)
			return
		}
		w.metrics.MarkSuccess(jobName, w.clock.Now())
	}()

	token, ok, err := w.lock.TryLock(ctx, w.cfg.LockKey, w.cfg.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire reconcile lock: %w", err)
	}
	if !ok {
		w.metrics.IncSkipped(jobName, metrics.JobSkipReasonLockHeld)
		w.log.Debug("reconcile skipped, lock held elsewhere")
		return 0, nil
	}
	defer func() {
		if releaseErr := w.lock.Release(context.WithoutCancel(ctx), w.cfg.LockKey, token); releaseErr != nil {
			w.log.Warn("release reconcile lock", zap.Error(releaseErr))
		}
	}()

	var (
		afterID snowflake.ID
		errs    error
	)
	for {
		if ctx.Err() != nil {
			return processed, errors.Join(errs, ctx.Err())
		}

		ids, err := w.offerRepo.ListIDsByStatus(ctx, w.db, offerdomain.StatusActive, afterID, w.cfg.BatchSize)
		if err != nil {
			return processed, errors.Join(errs, fmt.Errorf("list active offers: %w", err))
		}
		for _, id := range ids {
			_, fixed, err := w.offerSvc.Reconcile(ctx, id.String())
			if err != nil {
				if errors.Is(err, offerdomain.ErrNotFound) {
					continue
				}
				w.log.Warn("reconcile offer failed", zap.String("offer_id", id.String()), zap.Error(err))
				errs = errors.Join(errs, fmt.Errorf("offer %s: %w", id, err))
				continue
			}
			processed++
			if fixed {
				repaired++
			}
		}
		if len(ids) < w.cfg.BatchSize {
			break
		}
		afterID = ids[len(ids)-1]
	}

	w.log.Info("reconcile pass finished",
		zap.Int("offers", processed),
		zap.Int("repaired", repaired),
		zap.Duration("took", w.clock.Now().Sub(start)),
	)
	return processed, errs
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	nextRun := w.clock.Now().Add(w.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if lag := w.clock.Now().Sub(nextRun); lag > 0 {
			w.metrics.ObserveRunLoopLag(lag)
		}
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("reconcile run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(w.cfg.Interval)
	}
}

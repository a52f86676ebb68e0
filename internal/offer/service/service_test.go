package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alimia7/achatons/internal/clock"
	"github.com/alimia7/achatons/internal/config"
	"github.com/alimia7/achatons/internal/notification"
	"github.com/alimia7/achatons/internal/observability/metrics"
	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	"github.com/alimia7/achatons/internal/offer/progress"
	"github.com/alimia7/achatons/internal/offer/repository"
	pricetierdomain "github.com/alimia7/achatons/internal/pricetier/domain"
	"github.com/alimia7/achatons/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubLedger struct {
	mu      sync.Mutex
	entries map[snowflake.ID][]offerdomain.LedgerEntry
	bounds  map[snowflake.ID]offerdomain.LedgerBounds
}

func (l *stubLedger) set(id snowflake.ID, quantities ...int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]offerdomain.LedgerEntry, 0, len(quantities))
	for _, q := range quantities {
		entries = append(entries, offerdomain.LedgerEntry{Quantity: q})
	}
	l.entries[id] = entries
}

func (l *stubLedger) setBounds(id snowflake.ID, b offerdomain.LedgerBounds) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bounds[id] = b
}

func (l *stubLedger) LedgerBounds(_ context.Context, _ *gorm.DB, offerID snowflake.ID) (offerdomain.LedgerBounds, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bounds[offerID], nil
}

func (l *stubLedger) ValidatedEntries(_ context.Context, _ *gorm.DB, offerID snowflake.ID) ([]offerdomain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[offerID], nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.TierUnlocked
}

func (n *recordingNotifier) NotifyTierUnlocked(_ context.Context, event notification.TierUnlocked) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	ledger   *stubLedger
	clock    *clock.FakeClock
	notifier *recordingNotifier
	reg      *prometheus.Registry
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&offerdomain.Offer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	env := &testEnv{
		db:       conn,
		ledger: &stubLedger{
			entries: map[snowflake.ID][]offerdomain.LedgerEntry{},
			bounds:  map[snowflake.ID]offerdomain.LedgerBounds{},
		},
		clock:    clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)),
		notifier: &recordingNotifier{},
		reg:      prometheus.NewRegistry(),
	}
	env.svc = New(Params{
		DB:       conn,
		Tx:       db.NewTransactor(conn, zap.NewNop()),
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    env.clock,
		Repo:     repository.Provide(),
		Ledger:   env.ledger,
		Rules:    config.NewStaticPricingRulesHolder(config.DefaultPricingRules()),
		Notifier: env.notifier,
		Metrics:  metrics.NewEngineMetrics(env.reg, metrics.Config{}),
	}).(*Service)
	return env
}

func tieredRequest() offerdomain.CreateRequest {
	return offerdomain.CreateRequest{
		Title:        "Sac de riz 25 kg",
		SupplierID:   "sup-1",
		CategoryID:   "alimentation",
		BasePrice:    10000,
		PricingModel: offerdomain.PricingModelTiered,
		Tiers: []pricetierdomain.TierInput{
			{MinParticipants: 10, Price: 9000},
			{MinParticipants: 20, Price: 8000, Label: "Grossiste"},
			{MinParticipants: 50, Price: 7000},
		},
	}
}

func (e *testEnv) reload(t *testing.T, id snowflake.ID) *offerdomain.Offer {
	t.Helper()
	offer, err := e.svc.Get(context.Background(), id.String())
	require.NoError(t, err)
	return offer
}

func TestCreateTieredOffer(t *testing.T) {
	env := setupTestEnv(t)

	offer, err := env.svc.Create(context.Background(), tieredRequest())
	require.NoError(t, err)

	assert.Equal(t, offerdomain.StatusActive, offer.Status)
	assert.Equal(t, "XOF", offer.Currency)
	assert.True(t, strings.HasPrefix(offer.Slug, "sac-de-riz-25-kg-"))
	require.Len(t, offer.PricingTiers, 3)
	assert.Equal(t, "Tier 1", offer.PricingTiers[0].Label)
	assert.Equal(t, "Grossiste", offer.PricingTiers[1].Label)
	assert.Equal(t, 10.0, offer.PricingTiers[0].DiscountPercentage)

	stored := env.reload(t, offer.ID)
	assert.Equal(t, 0, stored.CurrentTier)
	assert.Equal(t, int64(10000), stored.CurrentPrice)
	require.NotNil(t, stored.NextTierQuantity)
	assert.Equal(t, int64(10), *stored.NextTierQuantity)
	assert.Len(t, stored.PricingTiers, 3)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	req := tieredRequest()
	req.Tiers[1].Price = 9500
	_, err := env.svc.Create(ctx, req)
	assert.ErrorIs(t, err, pricetierdomain.ErrInvalidTierConfiguration)
	assert.ErrorIs(t, err, pricetierdomain.ErrPriceNotDecreasing)

	req = tieredRequest()
	req.PricingModel = offerdomain.PricingModelFixed
	_, err = env.svc.Create(ctx, req)
	assert.ErrorIs(t, err, offerdomain.ErrTiersNotAllowed)

	req = tieredRequest()
	req.Title = "  "
	_, err = env.svc.Create(ctx, req)
	assert.ErrorIs(t, err, offerdomain.ErrInvalidTitle)

	req = tieredRequest()
	past := env.clock.Now().Add(-time.Hour)
	req.Deadline = &past
	_, err = env.svc.Create(ctx, req)
	assert.ErrorIs(t, err, offerdomain.ErrInvalidDeadline)

	req = tieredRequest()
	req.PricingModel = "auction"
	_, err = env.svc.Create(ctx, req)
	assert.ErrorIs(t, err, offerdomain.ErrInvalidPricingModel)
}

func TestApplyParticipationAndRecompute(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)

	res, err := env.svc.ApplyParticipation(ctx, offer.ID.String(), 10)
	require.NoError(t, err)
	assert.True(t, res.TierUnlocked)
	assert.Equal(t, 1, res.NewTierNumber)
	assert.Equal(t, int64(9000), res.NewPrice)
	assert.Equal(t, 1, env.notifier.count())

	stored := env.reload(t, offer.ID)
	assert.Equal(t, int64(1), stored.CurrentParticipants)
	assert.Equal(t, int64(10), stored.TotalQuantity)
	assert.Equal(t, int64(90000), stored.TotalRevenue)
	require.Len(t, stored.TierHistory, 1)
	assert.Equal(t, 1, stored.TierHistory[0].TierNumber)

	res, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), 5)
	require.NoError(t, err)
	assert.False(t, res.TierUnlocked)
	assert.Equal(t, 1, env.notifier.count())

	stored = env.reload(t, offer.ID)
	assert.Equal(t, int64(2), stored.CurrentParticipants)
	assert.Equal(t, int64(15), stored.TotalQuantity)
	assert.Equal(t, int64(135000), stored.TotalRevenue)

	// the 10-unit participation is cancelled; only 5 validated units remain
	env.ledger.set(offer.ID, 5)
	res, err = env.svc.Recompute(ctx, offer.ID.String())
	require.NoError(t, err)
	assert.False(t, res.TierUnlocked)

	stored = env.reload(t, offer.ID)
	assert.Equal(t, int64(1), stored.CurrentParticipants)
	assert.Equal(t, int64(5), stored.TotalQuantity)
	assert.Equal(t, 0, stored.CurrentTier)
	assert.Equal(t, int64(10000), stored.CurrentPrice)
	assert.Equal(t, int64(50000), stored.TotalRevenue)
	require.NotNil(t, stored.NextTierQuantity)
	assert.Equal(t, int64(10), *stored.NextTierQuantity)
	assert.Len(t, stored.TierHistory, 1)

	again, err := env.svc.Recompute(ctx, offer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, *res, *again)
	assert.Equal(t, stored.TotalRevenue, env.reload(t, offer.ID).TotalRevenue)
}

func TestApplyParticipationFixedPricing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, offerdomain.CreateRequest{Title: "Huile 5 L", BasePrice: 6500})
	require.NoError(t, err)
	assert.Equal(t, offerdomain.PricingModelFixed, offer.PricingModel)

	res, err := env.svc.ApplyParticipation(ctx, offer.ID.String(), 3)
	require.NoError(t, err)
	assert.False(t, res.TierUnlocked)

	stored := env.reload(t, offer.ID)
	assert.Equal(t, int64(1), stored.CurrentParticipants)
	assert.Equal(t, int64(3), stored.TotalQuantity)
	assert.Equal(t, int64(6500), stored.CurrentPrice)
	assert.Equal(t, int64(0), stored.TotalRevenue)
	assert.Empty(t, stored.TierHistory)
}

func TestApplyParticipationErrors(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ApplyParticipation(ctx, "not-an-id", 1)
	assert.ErrorIs(t, err, offerdomain.ErrInvalidID)

	_, err = env.svc.ApplyParticipation(ctx, "123456789", 1)
	assert.ErrorIs(t, err, offerdomain.ErrNotFound)

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)
	_, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), 0)
	assert.ErrorIs(t, err, offerdomain.ErrInvalidQuantity)

	_, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), config.DefaultPricingRules().MaxParticipationQuantity+1)
	assert.ErrorIs(t, err, offerdomain.ErrInvalidQuantity)

	_, err = env.svc.Recompute(ctx, "123456789")
	assert.ErrorIs(t, err, offerdomain.ErrNotFound)
}

func TestApplyParticipationRefusesOverflow(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&offerdomain.Offer{}).Where("id = ?", offer.ID).
		Update("total_quantity", int64(math.MaxInt64-5)).Error)

	_, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), 10)
	assert.ErrorIs(t, err, offerdomain.ErrAggregateOverflow)

	stored := env.reload(t, offer.ID)
	assert.Equal(t, int64(math.MaxInt64-5), stored.TotalQuantity)
	assert.Zero(t, stored.CurrentParticipants)
	assert.Zero(t, stored.TotalRevenue)
}

type conflictOnceRepo struct {
	offerdomain.Repository
	mu       sync.Mutex
	failures int
}

func (r *conflictOnceRepo) UpdateAggregates(ctx context.Context, tx *gorm.DB, offer *offerdomain.Offer) error {
	r.mu.Lock()
	if r.failures == 0 {
		r.failures++
		r.mu.Unlock()
		return &pgconn.PgError{Code: "40001"}
	}
	r.mu.Unlock()
	return r.Repository.UpdateAggregates(ctx, tx, offer)
}

func TestRetriedUpdateIsObservedOnce(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)
	env.svc.repo = &conflictOnceRepo{Repository: repository.Provide()}

	_, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), 10)
	require.NoError(t, err)

	// one series, outcome ok: the conflicting attempt is not counted
	count, err := testutil.GatherAndCount(env.reg, "achatons_offer_updates_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(10), env.reload(t, offer.ID).TotalQuantity)
}

func TestReconcileKeepsPendingUnits(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)
	_, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), 10)
	require.NoError(t, err)
	before := env.reload(t, offer.ID)

	// one pending participation of 10 units, nothing validated yet
	env.ledger.setBounds(offer.ID, offerdomain.LedgerBounds{OpenCount: 1, OpenQuantity: 10})
	env.clock.Advance(time.Hour)

	res, repaired, err := env.svc.Reconcile(ctx, offer.ID.String())
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Nil(t, res)

	after := env.reload(t, offer.ID)
	assert.Equal(t, before.TotalQuantity, after.TotalQuantity)
	assert.Equal(t, 1, after.CurrentTier)
	assert.Equal(t, int64(9000), after.CurrentPrice)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))

	_, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), 2)
	require.NoError(t, err)
	assert.Len(t, env.reload(t, offer.ID).TierHistory, 1)
}

func TestReconcileRepairsDrift(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)
	_, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), 20)
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&offerdomain.Offer{}).Where("id = ?", offer.ID).
		Updates(map[string]any{"current_tier": 0, "total_revenue": 1}).Error)

	env.ledger.set(offer.ID, 20)
	env.ledger.setBounds(offer.ID, offerdomain.LedgerBounds{
		ValidatedCount: 1, ValidatedQuantity: 20, OpenCount: 1, OpenQuantity: 20,
	})

	res, repaired, err := env.svc.Reconcile(ctx, offer.ID.String())
	require.NoError(t, err)
	assert.True(t, repaired)
	require.NotNil(t, res)

	stored := env.reload(t, offer.ID)
	assert.Equal(t, 2, stored.CurrentTier)
	assert.Equal(t, int64(20*8000), stored.TotalRevenue)

	_, _, err = env.svc.Reconcile(ctx, "123456789")
	assert.ErrorIs(t, err, offerdomain.ErrNotFound)
}

func TestConcurrentParticipationsLoseNoUpdates(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.ApplyParticipation(ctx, offer.ID.String(), 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored := env.reload(t, offer.ID)
	assert.Equal(t, int64(workers), stored.CurrentParticipants)
	assert.Equal(t, int64(workers), stored.TotalQuantity)
	assert.Equal(t, 2, stored.CurrentTier)
	// 9 units at base, 10 at tier 1, the 20th at tier 2
	assert.Equal(t, int64(9*10000+10*9000+8000), stored.TotalRevenue)
	require.Len(t, stored.TierHistory, 2)
	assert.Equal(t, 1, stored.TierHistory[0].TierNumber)
	assert.Equal(t, 2, stored.TierHistory[1].TierNumber)
	assert.Equal(t, 2, env.notifier.count())
}

func TestViewIncludesProgressAndNudge(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)
	_, err = env.svc.ApplyParticipation(ctx, offer.ID.String(), 8)
	require.NoError(t, err)

	view, err := env.svc.View(ctx, offer.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(8), view.Progress.CurrentQuantity)
	assert.Len(t, view.Progress.Segments, 3)
	require.NotNil(t, view.Nudge)
	assert.Equal(t, progress.ClassFewUnitsRemaining, view.Nudge.Class)
	assert.Equal(t, int64(2), view.Nudge.RemainingUnits)
	assert.Equal(t, "Plus que 2 unités pour débloquer le prix de 9 000 FCFA !", view.Nudge.Text)

	fixed, err := env.svc.Create(ctx, offerdomain.CreateRequest{Title: "Savon", BasePrice: 500})
	require.NoError(t, err)
	view, err = env.svc.View(ctx, fixed.ID.String())
	require.NoError(t, err)
	assert.Nil(t, view.Nudge)
}

func TestListPaginates(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.svc.Create(ctx, tieredRequest())
		require.NoError(t, err)
	}

	first, err := env.svc.List(ctx, offerdomain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, first.Offers, 2)
	require.NotNil(t, first.PageInfo)
	assert.True(t, first.PageInfo.HasMore)

	second, err := env.svc.List(ctx, offerdomain.ListRequest{PageSize: 2, PageToken: first.PageInfo.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, second.Offers, 1)
	assert.False(t, second.PageInfo.HasMore)
	assert.NotEqual(t, first.Offers[1].ID, second.Offers[0].ID)

	none, err := env.svc.List(ctx, offerdomain.ListRequest{Status: offerdomain.StatusClosed})
	require.NoError(t, err)
	assert.Empty(t, none.Offers)
}

func TestNotifyFailureDoesNotFailUpdate(t *testing.T) {
	env := setupTestEnv(t)
	env.svc.notifier = failingNotifier{}
	ctx := context.Background()

	offer, err := env.svc.Create(ctx, tieredRequest())
	require.NoError(t, err)

	res, err := env.svc.ApplyParticipation(ctx, offer.ID.String(), 12)
	require.NoError(t, err)
	assert.True(t, res.TierUnlocked)
}

type failingNotifier struct{}

func (failingNotifier) NotifyTierUnlocked(context.Context, notification.TierUnlocked) error {
	return errors.New("redis down")
}

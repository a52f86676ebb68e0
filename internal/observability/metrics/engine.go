package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	PathFastPath  = "fast_path"
	PathRecompute = "recompute"
	PathTiers     = "tiers"
)

// EngineMetrics tracks aggregate updates made by the pricing engine.
type EngineMetrics struct {
	updates        *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
	unitsApplied   prometheus.Counter
	tierUnlocks    prometheus.Counter
	txRetries      prometheus.Counter
	notifyFailures prometheus.Counter
}

func NewEngineMetrics(registerer prometheus.Registerer, cfg Config) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := cfg.constLabels()

	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "achatons_offer_updates_total",
		Help:        "Offer aggregate updates by path and outcome.",
		ConstLabels: constLabels,
	}, []string{"path", "outcome"})
	updateDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "achatons_offer_update_duration_seconds",
		Help:        "Latency of offer aggregate updates including row lock wait.",
		Buckets:     []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"path"})
	unitsApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "achatons_participation_units_total",
		Help:        "Units added through the fast path.",
		ConstLabels: constLabels,
	})
	tierUnlocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "achatons_tier_unlocks_total",
		Help:        "Offer tier crossings.",
		ConstLabels: constLabels,
	})
	txRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "achatons_tx_retries_total",
		Help:        "Transactions retried after a concurrency conflict.",
		ConstLabels: constLabels,
	})
	notifyFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "achatons_tier_notify_failures_total",
		Help:        "Tier unlock notifications that could not be published.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(updates, updateDuration, unitsApplied, tierUnlocks, txRetries, notifyFailures)

	return &EngineMetrics{
		updates:        updates,
		updateDuration: updateDuration,
		unitsApplied:   unitsApplied,
		tierUnlocks:    tierUnlocks,
		txRetries:      txRetries,
		notifyFailures: notifyFailures,
	}
}

// ObserveUpdate records one aggregate update on path.
func (m *EngineMetrics) ObserveUpdate(path string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.updates.WithLabelValues(path, outcome).Inc()
	m.updateDuration.WithLabelValues(path).Observe(duration.Seconds())
}

func (m *EngineMetrics) AddUnits(quantity int64) {
	if m == nil || quantity <= 0 {
		return
	}
	m.unitsApplied.Add(float64(quantity))
}

func (m *EngineMetrics) IncTierUnlock() {
	if m == nil {
		return
	}
	m.tierUnlocks.Inc()
}

func (m *EngineMetrics) IncTxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

func (m *EngineMetrics) IncNotifyFailure() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

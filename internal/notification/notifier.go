package notification

import (
	"context"
	"encoding/json"
	"time"

	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const TierUnlockedChannel = "achatons:tier_unlocked"

// TierUnlocked is published once per tier crossing, after the transaction
// that produced it has committed.
type TierUnlocked struct {
	OfferID    string    `json:"offer_id"`
	TierNumber int       `json:"tier_number"`
	Price      int64     `json:"price"`
	OccurredAt time.Time `json:"occurred_at"`
}

func FromUpdate(res offerdomain.UpdateResult, at time.Time) TierUnlocked {
	return TierUnlocked{
		OfferID:    res.OfferID,
		TierNumber: res.NewTierNumber,
		Price:      res.NewPrice,
		OccurredAt: at,
	}
}

type Notifier interface {
	NotifyTierUnlocked(ctx context.Context, event TierUnlocked) error
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type RedisNotifier struct {
	client  publisher
	channel string
	log     *zap.Logger
}

func NewRedisNotifier(client publisher, log *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: TierUnlockedChannel,
		log:     log.Named("notification.redis"),
	}
}

func (n *RedisNotifier) NotifyTierUnlocked(ctx context.Context, event TierUnlocked) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return err
	}
	n.log.Debug("tier unlock published",
		zap.String("offer_id", event.OfferID),
		zap.Int("tier", event.TierNumber),
	)
	return nil
}

// LogNotifier only logs; used when redis is not configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notification")}
}

func (n *LogNotifier) NotifyTierUnlocked(_ context.Context, event TierUnlocked) error {
	n.log.Info("tier unlocked",
		zap.String("offer_id", event.OfferID),
		zap.Int("tier", event.TierNumber),
		zap.Int64("price", event.Price),
	)
	return nil
}

type Nop struct{}

func (Nop) NotifyTierUnlocked(context.Context, TierUnlocked) error { return nil }

// New picks the redis publisher when a client is available.
func New(client *redis.Client, log *zap.Logger) Notifier {
	if client == nil {
		return NewLogNotifier(log)
	}
	return NewRedisNotifier(client, log)
}

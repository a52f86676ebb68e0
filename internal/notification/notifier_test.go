package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	offerdomain "github.com/alimia7/achatons/internal/offer/domain"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubPublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *stubPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisNotifierPublishesEvent(t *testing.T) {
	pub := &stubPublisher{}
	n := NewRedisNotifier(pub, zap.NewNop())
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	event := FromUpdate(offerdomain.UpdateResult{OfferID: "42", TierUnlocked: true, NewTierNumber: 2, NewPrice: 8000}, at)
	require.NoError(t, n.NotifyTierUnlocked(context.Background(), event))

	assert.Equal(t, TierUnlockedChannel, pub.channel)
	var decoded TierUnlocked
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "42", decoded.OfferID)
	assert.Equal(t, 2, decoded.TierNumber)
	assert.Equal(t, int64(8000), decoded.Price)
	assert.True(t, at.Equal(decoded.OccurredAt))
}

func TestRedisNotifierReturnsPublishError(t *testing.T) {
	pub := &stubPublisher{err: errors.New("connection refused")}
	n := NewRedisNotifier(pub, zap.NewNop())

	err := n.NotifyTierUnlocked(context.Background(), TierUnlocked{OfferID: "1"})
	assert.EqualError(t, err, "connection refused")
}

func TestNewFallsBackToLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := New(nil, zap.New(core))

	require.IsType(t, &LogNotifier{}, n)
	require.NoError(t, n.NotifyTierUnlocked(context.Background(), TierUnlocked{OfferID: "7", TierNumber: 1}))
	assert.Equal(t, 1, logs.FilterMessage("tier unlocked").Len())
}

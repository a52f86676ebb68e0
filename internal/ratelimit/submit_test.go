package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alimia7/achatons/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	deny  map[string]bool
	err   error
	calls []string
}

func (f *fakeBucket) Allow(_ context.Context, key string, rate float64, burst int) (*Result, error) {
	f.calls = append(f.calls, key)
	if f.err != nil {
		return nil, f.err
	}
	if f.deny[key] {
		return &Result{Allowed: false, Limit: burst, RetryAfter: time.Duration(float64(time.Second) / rate)}, nil
	}
	return &Result{Allowed: true, Limit: burst, Remaining: burst - 1}, nil
}

func testLimitConfig() config.SubmitRateLimitConfig {
	return config.SubmitRateLimitConfig{
		Enabled:    true,
		UserRate:   1,
		UserBurst:  2,
		OfferRate:  10,
		OfferBurst: 20,
	}
}

func TestSubmitLimiterAllowsWhenBothBucketsHaveTokens(t *testing.T) {
	bucket := &fakeBucket{}
	limiter := NewSubmitLimiterWithBucket(bucket, testLimitConfig())

	decision, err := limiter.Allow(context.Background(), "42", " alice ")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, []string{"achatons:submit:user:alice", "achatons:submit:offer:42"}, bucket.calls)
}

func TestSubmitLimiterDeniesOnUserBucketFirst(t *testing.T) {
	bucket := &fakeBucket{deny: map[string]bool{"achatons:submit:user:alice": true}}
	limiter := NewSubmitLimiterWithBucket(bucket, testLimitConfig())

	decision, err := limiter.Allow(context.Background(), "42", "alice")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonUserRate, decision.Reason)
	assert.Equal(t, time.Second, decision.Result.RetryAfter)
	assert.Len(t, bucket.calls, 1)
}

func TestSubmitLimiterDeniesOnOfferBucket(t *testing.T) {
	bucket := &fakeBucket{deny: map[string]bool{"achatons:submit:offer:42": true}}
	limiter := NewSubmitLimiterWithBucket(bucket, testLimitConfig())

	decision, err := limiter.Allow(context.Background(), "42", "bob")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonOfferRate, decision.Reason)
}

func TestSubmitLimiterSkipsUserBucketWithoutUser(t *testing.T) {
	bucket := &fakeBucket{}
	limiter := NewSubmitLimiterWithBucket(bucket, testLimitConfig())

	_, err := limiter.Allow(context.Background(), "42", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"achatons:submit:offer:42"}, bucket.calls)
}

func TestSubmitLimiterPropagatesBucketErrors(t *testing.T) {
	boom := errors.New("redis down")
	limiter := NewSubmitLimiterWithBucket(&fakeBucket{err: boom}, testLimitConfig())

	_, err := limiter.Allow(context.Background(), "42", "alice")
	assert.ErrorIs(t, err, boom)
}

func TestSubmitLimiterDisabled(t *testing.T) {
	cfg := testLimitConfig()
	cfg.Enabled = false
	bucket := &fakeBucket{}
	limiter := NewSubmitLimiterWithBucket(bucket, cfg)

	assert.False(t, limiter.Enabled())
	decision, err := limiter.Allow(context.Background(), "42", "alice")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Empty(t, bucket.calls)

	withoutRedis := NewSubmitLimiter(config.Config{SubmitRateLimit: testLimitConfig()}, nil)
	assert.False(t, withoutRedis.Enabled())
}

func TestTokenBucketHelpers(t *testing.T) {
	assert.ErrorIs(t, checkBucketArgs("", 1, 1), ErrEmptyKey)
	assert.ErrorIs(t, checkBucketArgs("k", 0, 1), ErrInvalidRate)
	assert.ErrorIs(t, checkBucketArgs("k", 1, 0), ErrInvalidBurst)
	assert.NoError(t, checkBucketArgs("k", 1, 1))

	assert.Equal(t, 20*time.Second, bucketTTL(1, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, 500*time.Millisecond, retryAfter(false, 0.5, 1))
	assert.Zero(t, retryAfter(true, 0, 1))

	assert.Equal(t, int64(1), toInt64("1"))
	assert.Equal(t, 0.25, toFloat64("0.25"))

	var nilBucket *TokenBucket
	_, err := nilBucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, NewTokenBucket(nil))
}

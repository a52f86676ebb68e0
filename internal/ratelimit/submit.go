package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/alimia7/achatons/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	ReasonUserRate  = "user-rate"
	ReasonOfferRate = "offer-rate"

	submitUserKeyFormat  = "achatons:submit:user:%s"
	submitOfferKeyFormat = "achatons:submit:offer:%s"
)

// Decision is the outcome of a submission check. Reason is empty when allowed.
type Decision struct {
	Allowed bool
	Reason  string
	Result  *Result
}

// SubmitLimiter throttles participation submissions per user and per offer.
type SubmitLimiter struct {
	bucket Bucket
	cfg    config.SubmitRateLimitConfig
}

func NewSubmitLimiter(cfg config.Config, client *redis.Client) *SubmitLimiter {
	if client == nil {
		return &SubmitLimiter{cfg: cfg.SubmitRateLimit}
	}
	return NewSubmitLimiterWithBucket(NewTokenBucket(client), cfg.SubmitRateLimit)
}

func NewSubmitLimiterWithBucket(bucket Bucket, cfg config.SubmitRateLimitConfig) *SubmitLimiter {
	return &SubmitLimiter{bucket: bucket, cfg: cfg}
}

func (l *SubmitLimiter) Enabled() bool {
	return l != nil && l.bucket != nil && l.cfg.Enabled
}

// Allow checks the user bucket first so a single noisy user does not drain
// the shared offer bucket.
func (l *SubmitLimiter) Allow(ctx context.Context, offerID, userID string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}

	userID = strings.TrimSpace(userID)
	if userID != "" && l.cfg.UserRate > 0 && l.cfg.UserBurst > 0 {
		res, err := l.bucket.Allow(ctx, fmt.Sprintf(submitUserKeyFormat, userID), l.cfg.UserRate, l.cfg.UserBurst)
		if err != nil {
			return Decision{}, err
		}
		if !res.Allowed {
			return Decision{Reason: ReasonUserRate, Result: res}, nil
		}
	}

	offerID = strings.TrimSpace(offerID)
	if offerID != "" && l.cfg.OfferRate > 0 && l.cfg.OfferBurst > 0 {
		res, err := l.bucket.Allow(ctx, fmt.Sprintf(submitOfferKeyFormat, offerID), l.cfg.OfferRate, l.cfg.OfferBurst)
		if err != nil {
			return Decision{}, err
		}
		if !res.Allowed {
			return Decision{Reason: ReasonOfferRate, Result: res}, nil
		}
	}

	return Decision{Allowed: true}, nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultTxMaxAttempts = 3
	defaultTxBackoff     = 20 * time.Millisecond
)

// Transactor runs a function in a database transaction and retries the whole
// function when the database reports a concurrency conflict. fn must not keep
// state across attempts.
type Transactor struct {
	db          *gorm.DB
	log         *zap.Logger
	maxAttempts int
	backoff     time.Duration
	onRetry     func(attempt int, err error)
}

type TxOption func(*Transactor)

func WithMaxAttempts(n int) TxOption {
	return func(t *Transactor) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

func WithBackoff(d time.Duration) TxOption {
	return func(t *Transactor) {
		if d > 0 {
			t.backoff = d
		}
	}
}

// WithRetryHook is called before each retry.
func WithRetryHook(fn func(attempt int, err error)) TxOption {
	return func(t *Transactor) { t.onRetry = fn }
}

func NewTransactor(db *gorm.DB, log *zap.Logger, opts ...TxOption) *Transactor {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Transactor{
		db:          db,
		log:         log.Named("db.tx"),
		maxAttempts: defaultTxMaxAttempts,
		backoff:     defaultTxBackoff,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transactor) DB() *gorm.DB { return t.db }

// Do runs fn in a transaction. Retryable failures are retried with
// exponential backoff; once attempts are exhausted the returned error wraps
// ErrTransientConflict. Other errors are returned unchanged after the first
// attempt.
func (t *Transactor) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		err := t.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.backoff
	policy.MaxInterval = 20 * t.backoff

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(t.maxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			t.log.Warn("retrying transaction",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
			if t.onRetry != nil {
				t.onRetry(attempt, err)
			}
		}),
	)
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	if IsRetryable(err) {
		return fmt.Errorf("%w: %v", ErrTransientConflict, err)
	}
	return err
}

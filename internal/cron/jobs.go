package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/logger"
	"github.com/merakimart/backend/pkg/outbox"
)

// paymentExpirer is the slice of the order service the sweep needs.
type paymentExpirer interface {
	ExpirePendingPayments(ctx context.Context, olderThan time.Duration) (int, error)
}

// giftCardSweeper flips active cards past their expiry.
type giftCardSweeper interface {
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

// PendingPaymentSweepJob cancels Razorpay orders whose payment never arrived
// within the TTL, restoring stock and releasing coupons as it goes.
type PendingPaymentSweepJob struct {
	orders paymentExpirer
	ttl    time.Duration
	logg   *logger.Logger
}

// NewPendingPaymentSweepJob builds the pending payment sweep.
func NewPendingPaymentSweepJob(orders paymentExpirer, ttl time.Duration, logg *logger.Logger) (*PendingPaymentSweepJob, error) {
	if orders == nil {
		return nil, errors.New("order service required")
	}
	if ttl <= 0 {
		return nil, errors.New("payment ttl must be positive")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &PendingPaymentSweepJob{orders: orders, ttl: ttl, logg: logg}, nil
}

// Name implements Job.
func (j *PendingPaymentSweepJob) Name() string { return "pending-payment-ttl" }

// Run implements Job.
func (j *PendingPaymentSweepJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpirePendingPayments(ctx, j.ttl)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "pending payments swept")
	return nil
}

// OutboxRetentionJob prunes published outbox rows older than the retention
// window so the table stays small.
type OutboxRetentionJob struct {
	db        *gorm.DB
	repo      *outbox.Repository
	retention time.Duration
	logg      *logger.Logger
}

// NewOutboxRetentionJob builds the outbox retention job.
func NewOutboxRetentionJob(db *gorm.DB, repo *outbox.Repository, retention time.Duration, logg *logger.Logger) (*OutboxRetentionJob, error) {
	if db == nil {
		return nil, errors.New("db handle required")
	}
	if repo == nil {
		return nil, errors.New("outbox repository required")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &OutboxRetentionJob{db: db, repo: repo, retention: retention, logg: logg}, nil
}

// Name implements Job.
func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

// Run implements Job.
func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeletePublishedBefore(j.db.WithContext(ctx), cutoff)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "deleted", deleted), "published outbox rows pruned")
	return nil
}

// GiftCardExpiryJob marks active gift cards past their expiry as expired so
// they stop passing the redemption eligibility check on status alone.
type GiftCardExpiryJob struct {
	cards giftCardSweeper
	logg  *logger.Logger
}

// NewGiftCardExpiryJob builds the gift card expiry sweep.
func NewGiftCardExpiryJob(cards giftCardSweeper, logg *logger.Logger) (*GiftCardExpiryJob, error) {
	if cards == nil {
		return nil, errors.New("gift card repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &GiftCardExpiryJob{cards: cards, logg: logg}, nil
}

// Name implements Job.
func (j *GiftCardExpiryJob) Name() string { return "gift-card-expiry" }

// Run implements Job.
func (j *GiftCardExpiryJob) Run(ctx context.Context) error {
	expired, err := j.cards.ExpireBefore(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "gift cards expired")
	return nil
}

package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/merakimart/backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubExpirer struct {
	gotTTL  time.Duration
	expired int
	err     error
}

func (s *stubExpirer) ExpirePendingPayments(ctx context.Context, olderThan time.Duration) (int, error) {
	s.gotTTL = olderThan
	return s.expired, s.err
}

type stubSweeper struct {
	expired int64
	err     error
}

func (s *stubSweeper) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	return s.expired, s.err
}

func TestPendingPaymentSweepJobPassesTTL(t *testing.T) {
	expirer := &stubExpirer{expired: 3}
	job, err := NewPendingPaymentSweepJob(expirer, 24*time.Hour, testLogger())
	if err != nil {
		t.Fatalf("NewPendingPaymentSweepJob: %v", err)
	}

	if job.Name() != "pending-payment-ttl" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.gotTTL != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %s", expirer.gotTTL)
	}
}

func TestPendingPaymentSweepJobPropagatesError(t *testing.T) {
	expirer := &stubExpirer{err: errors.New("boom")}
	job, err := NewPendingPaymentSweepJob(expirer, time.Hour, testLogger())
	if err != nil {
		t.Fatalf("NewPendingPaymentSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestGiftCardExpiryJobRuns(t *testing.T) {
	job, err := NewGiftCardExpiryJob(&stubSweeper{expired: 2}, testLogger())
	if err != nil {
		t.Fatalf("NewGiftCardExpiryJob: %v", err)
	}
	if job.Name() != "gift-card-expiry" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

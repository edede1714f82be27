package settings

import (
	"context"
	"io"
	"testing"

	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
)

type stubSettingsRepo struct {
	row     *models.StoreSettings
	getErr  error
	saveErr error
	gets    int
	saves   int
}

func (s *stubSettingsRepo) WithTx(tx *gorm.DB) SettingsRepository { return s }

func (s *stubSettingsRepo) Get(ctx context.Context) (*models.StoreSettings, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	row := *s.row
	return &row, nil
}

func (s *stubSettingsRepo) Update(ctx context.Context, row *models.StoreSettings) (*models.StoreSettings, error) {
	s.saves++
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	saved := *row
	s.row = &saved
	return &saved, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func defaultRow() *models.StoreSettings {
	return &models.StoreSettings{
		ID:                   models.SettingsRowID,
		ShippingFeePaise:     5000,
		FreeShippingMinPaise: 100000,
		LoyaltyPointsPer100:  1,
		PointsToPaiseRate:    100,
		ReferralBonusPoints:  100,
		MinRedeemPoints:      50,
		LowStockThreshold:    5,
	}
}

func TestServiceGetCachesRow(t *testing.T) {
	t.Parallel()

	repo := &stubSettingsRepo{row: defaultRow()}
	svc, err := NewService(repo, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := svc.Get(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ShippingFeePaise != 5000 {
			t.Fatalf("unexpected shipping fee: %d", got.ShippingFeePaise)
		}
	}
	if repo.gets != 1 {
		t.Fatalf("expected single repo read, got %d", repo.gets)
	}
}

func TestServiceGetMissingRow(t *testing.T) {
	t.Parallel()

	repo := &stubSettingsRepo{getErr: gorm.ErrRecordNotFound}
	svc, _ := NewService(repo, testLogger())

	_, err := svc.Get(context.Background())
	if err == nil {
		t.Fatal("expected error for missing row")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceUpdateValidatesAndInvalidatesCache(t *testing.T) {
	t.Parallel()

	repo := &stubSettingsRepo{row: defaultRow()}
	svc, _ := NewService(repo, testLogger())

	bad := -1
	if _, err := svc.Update(context.Background(), UpdateInput{LowStockThreshold: &bad}); err == nil {
		t.Fatal("expected validation error")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}

	fee := int64(7500)
	updated, err := svc.Update(context.Background(), UpdateInput{ShippingFeePaise: &fee})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ShippingFeePaise != 7500 {
		t.Fatalf("expected updated fee, got %d", updated.ShippingFeePaise)
	}

	got, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ShippingFeePaise != 7500 {
		t.Fatalf("cache should reflect update, got %d", got.ShippingFeePaise)
	}
}

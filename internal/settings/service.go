package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/logger"
)

const cacheTTL = time.Minute

// Service exposes store-wide settings. Reads are cached in-process; the cache
// is invalidated on update and expires after cacheTTL so other instances
// converge without coordination.
type Service interface {
	Get(ctx context.Context) (*models.StoreSettings, error)
	Update(ctx context.Context, in UpdateInput) (*models.StoreSettings, error)
}

// UpdateInput carries the mutable settings fields. Nil means "leave as is".
type UpdateInput struct {
	ShippingFeePaise     *int64
	FreeShippingMinPaise *int64
	LoyaltyPointsPer100  *int
	PointsToPaiseRate    *int64
	MinRedeemPoints      *int
	ReferralBonusPoints  *int
	LowStockThreshold    *int
}

type service struct {
	repo SettingsRepository
	logg *logger.Logger

	mu        sync.RWMutex
	cached    *models.StoreSettings
	fetchedAt time.Time
}

// NewService constructs the settings service.
func NewService(repo SettingsRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Get(ctx context.Context) (*models.StoreSettings, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.fetchedAt) < cacheTTL {
		row := *s.cached
		s.mu.RUnlock()
		return &row, nil
	}
	s.mu.RUnlock()

	row, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "store settings row missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store settings")
	}

	s.mu.Lock()
	s.cached = row
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	out := *row
	return &out, nil
}

func (s *service) Update(ctx context.Context, in UpdateInput) (*models.StoreSettings, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if in.ShippingFeePaise != nil {
		if *in.ShippingFeePaise < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping_fee_paise must be non-negative")
		}
		row.ShippingFeePaise = *in.ShippingFeePaise
	}
	if in.FreeShippingMinPaise != nil {
		if *in.FreeShippingMinPaise < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "free_shipping_min_paise must be non-negative")
		}
		row.FreeShippingMinPaise = *in.FreeShippingMinPaise
	}
	if in.LoyaltyPointsPer100 != nil {
		if *in.LoyaltyPointsPer100 < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "loyalty_points_per_100 must be non-negative")
		}
		row.LoyaltyPointsPer100 = *in.LoyaltyPointsPer100
	}
	if in.PointsToPaiseRate != nil {
		if *in.PointsToPaiseRate <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "points_to_paise_rate must be positive")
		}
		row.PointsToPaiseRate = *in.PointsToPaiseRate
	}
	if in.MinRedeemPoints != nil {
		if *in.MinRedeemPoints < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_redeem_points must be non-negative")
		}
		row.MinRedeemPoints = *in.MinRedeemPoints
	}
	if in.ReferralBonusPoints != nil {
		if *in.ReferralBonusPoints < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "referral_bonus_points must be non-negative")
		}
		row.ReferralBonusPoints = *in.ReferralBonusPoints
	}
	if in.LowStockThreshold != nil {
		if *in.LowStockThreshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must be non-negative")
		}
		row.LowStockThreshold = *in.LowStockThreshold
	}

	updated, err := s.repo.Update(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist store settings")
	}

	s.mu.Lock()
	s.cached = updated
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"shipping_fee_paise":   updated.ShippingFeePaise,
		"points_to_paise_rate": updated.PointsToPaiseRate,
	})
	s.logg.Info(logCtx, "store settings updated")

	out := *updated
	return &out, nil
}

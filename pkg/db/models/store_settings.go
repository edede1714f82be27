package models

import (
	"time"

	"github.com/google/uuid"
)

// StoreSettings is a single-row table keyed by a fixed id. Reads go through
// the settings service which caches it; writes bump UpdatedAt so the cache
// can be invalidated.
//
// PointsToPaiseRate is the paise value of one loyalty point when redeemed
// (100 = 1 point per rupee, the 1:1 default).
type StoreSettings struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShippingFeePaise     int64     `gorm:"column:shipping_fee_paise;not null;default:5000"`
	FreeShippingMinPaise int64     `gorm:"column:free_shipping_min_paise;not null;default:100000"`
	LoyaltyPointsPer100  int       `gorm:"column:loyalty_points_per_100;not null;default:1"`
	PointsToPaiseRate    int64     `gorm:"column:points_to_paise_rate;not null;default:100"`
	MinRedeemPoints      int       `gorm:"column:min_redeem_points;not null;default:50"`
	ReferralBonusPoints  int       `gorm:"column:referral_bonus_points;not null;default:100"`
	LowStockThreshold    int       `gorm:"column:low_stock_threshold;not null;default:5"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SettingsRowID is the fixed primary key of the single settings row.
var SettingsRowID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/enums"
)

// Coupon value semantics depend on DiscountType: for percentage coupons Value
// is whole percent (1..100), for fixed coupons it is an amount in paise.
// UsedCount is consumed at checkout with a conditional increment so the usage
// limit holds under concurrency.
type Coupon struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string             `gorm:"column:code;not null;uniqueIndex"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null"`
	Value         int64              `gorm:"column:value;not null"`
	MinOrderPaise int64              `gorm:"column:min_order_paise;not null;default:0"`
	MaxDiscPaise  *int64             `gorm:"column:max_disc_paise"`
	UsageLimit    *int64             `gorm:"column:usage_limit"`
	UsedCount     int64              `gorm:"column:used_count;not null;default:0"`
	StartsAt      *time.Time         `gorm:"column:starts_at"`
	ExpiresAt     *time.Time         `gorm:"column:expires_at"`
	Active        bool               `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is one-per-user. Version is bumped on every mutation so stale clients
// can detect concurrent edits; SubtotalPaise is a cache recomputed from the
// items inside the same transaction that changed them.
type Cart struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	CouponID      *uuid.UUID `gorm:"column:coupon_id;type:uuid"`
	Version       int64      `gorm:"column:version;not null;default:0"`
	SubtotalPaise int64      `gorm:"column:subtotal_paise;not null;default:0"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Items  []CartItem `gorm:"foreignKey:CartID"`
	Coupon *Coupon    `gorm:"foreignKey:CouponID"`
}

type CartItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_product"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPricePaise int64     `gorm:"column:unit_price_paise;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

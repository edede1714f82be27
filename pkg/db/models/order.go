package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/enums"
	"github.com/merakimart/backend/pkg/types"
)

// Order amounts are integer paise and satisfy
// TotalPaise = SubtotalPaise - DiscountPaise + ShippingPaise at all times.
// Razorpay fields are set when the payment method is razorpay: the gateway
// order id at checkout, the payment id and signature when verification
// succeeds.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status            enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'processing'"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	SubtotalPaise     int64               `gorm:"column:subtotal_paise;not null"`
	DiscountPaise     int64               `gorm:"column:discount_paise;not null;default:0"`
	ShippingPaise     int64               `gorm:"column:shipping_paise;not null;default:0"`
	GiftCardPaise     int64               `gorm:"column:gift_card_paise;not null;default:0"`
	TotalPaise        int64               `gorm:"column:total_paise;not null"`
	CouponID          *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	CouponCode        *string             `gorm:"column:coupon_code"`
	ShippingAddress   types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	RazorpayOrderID   *string             `gorm:"column:razorpay_order_id;index"`
	RazorpayPaymentID *string             `gorm:"column:razorpay_payment_id"`
	RazorpaySignature *string             `gorm:"column:razorpay_signature"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	ShippedAt         *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}

// OrderItem snapshots the product name and unit price at checkout time so the
// order remains readable after catalog edits.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPricePaise int64     `gorm:"column:unit_price_paise;not null"`
	LinePaise      int64     `gorm:"column:line_paise;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

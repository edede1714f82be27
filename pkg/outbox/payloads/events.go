package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/enums"
)

// OrderCreatedEvent signals a new checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalPaise    int64               `json:"total_paise"`
	ItemCount     int                 `json:"item_count"`
}

// OrderPaidEvent is emitted when a Razorpay payment verifies or a COD order is
// marked paid on delivery.
type OrderPaidEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	UserID            uuid.UUID `json:"user_id"`
	AmountPaise       int64     `json:"amount_paise"`
	RazorpayPaymentID string    `json:"razorpay_payment_id,omitempty"`
	PaidAt            time.Time `json:"paid_at"`
}

// OrderStatusEvent covers shipped/delivered transitions.
type OrderStatusEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Status    enums.OrderStatus `json:"status"`
	ChangedAt time.Time         `json:"changed_at"`
}

// OrderCancelledEvent is emitted whenever an order is cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderPaymentExpiredEvent reports a pending Razorpay order swept by the TTL job.
type OrderPaymentExpiredEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// UserRegisteredEvent is published for welcome flows and referral attribution.
type UserRegisteredEvent struct {
	UserID       uuid.UUID  `json:"user_id"`
	Email        string     `json:"email"`
	ReferredByID *uuid.UUID `json:"referred_by_id,omitempty"`
}

// PointsAccruedEvent reports loyalty points earned for a delivered order.
type PointsAccruedEvent struct {
	UserID  uuid.UUID `json:"user_id"`
	OrderID uuid.UUID `json:"order_id"`
	Points  int       `json:"points"`
	Balance int       `json:"balance"`
}

// PointsRedeemedEvent reports points converted into a single-use coupon. The
// aggregate is the ledger row so repeated redemptions never collide.
type PointsRedeemedEvent struct {
	LedgerID   uuid.UUID `json:"ledger_id"`
	UserID     uuid.UUID `json:"user_id"`
	Points     int       `json:"points"`
	ValuePaise int64     `json:"value_paise"`
	CouponID   uuid.UUID `json:"coupon_id"`
	CouponCode string    `json:"coupon_code"`
	Balance    int       `json:"balance"`
}

// ReferralBonusAwardedEvent is emitted once per referred user.
type ReferralBonusAwardedEvent struct {
	ReferrerID     uuid.UUID `json:"referrer_id"`
	ReferredUserID uuid.UUID `json:"referred_user_id"`
	Points         int       `json:"points"`
}

// ReviewSubmittedEvent signals a new review awaiting moderation.
type ReviewSubmittedEvent struct {
	ReviewID  uuid.UUID `json:"review_id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    int       `json:"rating"`
}

// ReviewModeratedEvent reports the moderation decision.
type ReviewModeratedEvent struct {
	ReviewID  uuid.UUID          `json:"review_id"`
	ProductID uuid.UUID          `json:"product_id"`
	Status    enums.ReviewStatus `json:"status"`
}

// GiftCardIssuedEvent is emitted when an admin issues a card.
type GiftCardIssuedEvent struct {
	GiftCardID   uuid.UUID  `json:"gift_card_id"`
	IssuedToID   *uuid.UUID `json:"issued_to_id,omitempty"`
	InitialPaise int64      `json:"initial_paise"`
}

// GiftCardRedeemedEvent reports a debit against a card. The aggregate is the
// redemption row so repeated redemptions of one card never collide.
type GiftCardRedeemedEvent struct {
	RedemptionID uuid.UUID  `json:"redemption_id"`
	GiftCardID   uuid.UUID  `json:"gift_card_id"`
	UserID       uuid.UUID  `json:"user_id"`
	OrderID      *uuid.UUID `json:"order_id,omitempty"`
	AmountPaise  int64      `json:"amount_paise"`
	BalancePaise int64      `json:"balance_paise"`
}

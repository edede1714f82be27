package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/enums"
)

// GiftCard balances are debited with a conditional UPDATE so two concurrent
// redemptions can never overdraw the card. Status moves to redeemed when the
// balance reaches zero.
type GiftCard struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string               `gorm:"column:code;not null;uniqueIndex"`
	InitialPaise int64                `gorm:"column:initial_paise;not null"`
	BalancePaise int64                `gorm:"column:balance_paise;not null"`
	Status       enums.GiftCardStatus `gorm:"column:status;type:gift_card_status;not null;default:'active'"`
	IssuedToID   *uuid.UUID           `gorm:"column:issued_to_id;type:uuid"`
	ExpiresAt    *time.Time           `gorm:"column:expires_at"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// GiftCardRedemption is the audit trail for every debit against a card.
type GiftCardRedemption struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GiftCardID  uuid.UUID  `gorm:"column:gift_card_id;type:uuid;not null;index"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid"`
	AmountPaise int64      `gorm:"column:amount_paise;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

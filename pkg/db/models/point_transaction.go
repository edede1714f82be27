package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/enums"
)

// PointTransaction is the append-only loyalty ledger. Points is positive for
// accruals and negative for redemptions; the user's LoyaltyPoints cache is
// updated in the same transaction that inserts the row. The partial unique
// index on (user_id, order_id, type) makes per-order accrual idempotent.
type PointTransaction struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID                 `gorm:"column:order_id;type:uuid"`
	Type      enums.PointTransactionType `gorm:"column:type;type:point_transaction_type;not null"`
	Points    int                        `gorm:"column:points;not null"`
	Note      string                     `gorm:"column:note;not null;default:''"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

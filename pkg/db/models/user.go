package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/enums"
)

// User is a storefront account. LoyaltyPoints is a running balance that must
// equal the sum of the user's point transactions.
type User struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string           `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash     string           `gorm:"column:password_hash;not null"`
	Name             string           `gorm:"column:name;not null"`
	Role             enums.MemberRole `gorm:"column:role;type:member_role;not null;default:'customer'"`
	ReferralCode     string           `gorm:"column:referral_code;not null;uniqueIndex"`
	ReferredByID     *uuid.UUID       `gorm:"column:referred_by_id;type:uuid"`
	ReferralRewarded bool             `gorm:"column:referral_rewarded;not null;default:false"`
	LoyaltyPoints    int              `gorm:"column:loyalty_points;not null;default:0"`
	LastLoginAt      *time.Time       `gorm:"column:last_login_at"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID            uuid.UUID        `json:"id"`
	Email         string           `json:"email"`
	Name          string           `json:"name"`
	Role          enums.MemberRole `json:"role"`
	ReferralCode  string           `json:"referral_code"`
	LoyaltyPoints int              `json:"loyalty_points"`
	LastLoginAt   *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	Role         enums.MemberRole
	ReferralCode string
	ReferredByID *uuid.UUID
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		ReferralCode:  u.ReferralCode,
		LoyaltyPoints: u.LoyaltyPoints,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.MemberRoleCustomer
	}

	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Name:         c.Name,
		Role:         role,
		ReferralCode: c.ReferralCode,
		ReferredByID: c.ReferredByID,
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/internal/users"
	"github.com/merakimart/backend/pkg/config"
	dbpkg "github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/outbox/payloads"
	"github.com/merakimart/backend/pkg/security"
)

const (
	minPasswordLen = 8
	// referralCodeRetries bounds collision retries on the generated code.
	referralCodeRetries = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByReferralCode(ctx context.Context, code string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

// RegisterRequest carries the sign-up payload.
type RegisterRequest struct {
	Name         string  `json:"name" validate:"required"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required"`
	ReferralCode *string `json:"referral_code,omitempty"`
}

// RegisterService handles the sign-up transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) error
}

// RegisterServiceParams packages the dependencies for the sign-up flow.
// UserRepoFactory is overridable for tests and defaults to the real repo.
type RegisterServiceParams struct {
	Tx              txRunner
	Password        config.PasswordConfig
	Events          outboxEmitter
	UserRepoFactory func(tx *gorm.DB) registerUserRepository
}

type registerService struct {
	tx          txRunner
	passwordCfg config.PasswordConfig
	events      outboxEmitter
	userRepoFor func(tx *gorm.DB) registerUserRepository
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	factory := params.UserRepoFactory
	if factory == nil {
		factory = func(tx *gorm.DB) registerUserRepository {
			return users.NewRepository(tx)
		}
	}
	return &registerService{
		tx:          params.Tx,
		passwordCfg: params.Password,
		events:      params.Events,
		userRepoFor: factory,
	}, nil
}

// Register creates the account, resolves the optional referrer, and emits the
// welcome event. The referral bonus itself is paid later, on the referred
// user's first delivered order.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.userRepoFor(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}

		referredByID, err := resolveReferrer(ctx, userRepo, req.ReferralCode)
		if err != nil {
			return err
		}

		user, err := createWithReferralCode(ctx, userRepo, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			Name:         name,
			Role:         enums.MemberRoleCustomer,
			ReferredByID: referredByID,
		})
		if err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserRegistered,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(user.Role)},
			Data: payloads.UserRegisteredEvent{
				UserID:       user.ID,
				Email:        user.Email,
				ReferredByID: user.ReferredByID,
			},
		})
	})
}

func resolveReferrer(ctx context.Context, repo registerUserRepository, code *string) (*uuid.UUID, error) {
	if code == nil {
		return nil, nil
	}
	normalized := strings.ToUpper(strings.TrimSpace(*code))
	if normalized == "" {
		return nil, nil
	}
	referrer, err := repo.FindByReferralCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid referral code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup referral code")
	}
	return &referrer.ID, nil
}

// createWithReferralCode retries code generation on the referral_code unique
// index; an email collision inside the same window is surfaced as a conflict.
func createWithReferralCode(ctx context.Context, repo registerUserRepository, dto users.CreateUserDTO) (*models.User, error) {
	for attempt := 0; attempt < referralCodeRetries; attempt++ {
		code, err := security.GenerateReferralCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate referral code")
		}
		dto.ReferralCode = code

		user, err := repo.Create(ctx, dto)
		if err == nil {
			return user, nil
		}
		if dbpkg.IsUniqueViolation(err, "ux_users_referral_code") {
			continue
		}
		if dbpkg.IsUniqueViolation(err, "ux_users_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "referral code space exhausted")
}

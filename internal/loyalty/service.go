package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/internal/coupons"
	dbpkg "github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/outbox/payloads"
	"github.com/merakimart/backend/pkg/pagination"
	"github.com/merakimart/backend/pkg/security"
)

// redeemCouponTTL is the lifetime of a coupon minted from points.
const redeemCouponTTL = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type settingsLoader interface {
	Get(ctx context.Context) (*models.StoreSettings, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns the points ledger. Accrual and the referral bonus run inside
// the order-delivery transaction; Redeem mints a single-use coupon.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	Ledger(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointTransaction, string, error)
	Redeem(ctx context.Context, userID uuid.UUID, points int) (*models.Coupon, error)
	AccrueOrderTx(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, totalPaise int64) (int, error)
	ReferralBonusTx(ctx context.Context, tx *gorm.DB, referrerID, referredUserID uuid.UUID) (int, error)
}

type service struct {
	repo     LedgerRepository
	coupons  coupons.CouponRepository
	tx       txRunner
	settings settingsLoader
	events   outboxEmitter
	now      func() time.Time
}

// NewService builds a loyalty service backed by the provided stack.
func NewService(repo LedgerRepository, couponRepo coupons.CouponRepository, tx txRunner, settings settingsLoader, events outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings loader required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:     repo,
		coupons:  couponRepo,
		tx:       tx,
		settings: settings,
		events:   events,
		now:      time.Now,
	}, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load point balance")
	}
	return balance, nil
}

func (s *service) Ledger(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointTransaction, string, error) {
	rows, cursor, err := s.repo.List(ctx, userID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list point transactions")
	}
	return rows, cursor, nil
}

// Redeem converts points into a fresh single-use fixed coupon. The debit,
// ledger append, coupon insert, and outbox event commit together. The
// min-order floor of twice the discount keeps the coupon off trivial carts.
func (s *service) Redeem(ctx context.Context, userID uuid.UUID, points int) (*models.Coupon, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if points < cfg.MinRedeemPoints {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("minimum %d points per redemption", cfg.MinRedeemPoints))
	}

	valuePaise := int64(points) * cfg.PointsToPaiseRate
	code, err := security.GenerateCouponCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate coupon code")
	}

	var coupon *models.Coupon
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		balance, applied, err := txRepo.AdjustBalance(ctx, userID, -points)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit points")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient loyalty points")
		}

		ledger, err := txRepo.Insert(ctx, &models.PointTransaction{
			UserID: userID,
			Type:   enums.PointTransactionTypeRedeemed,
			Points: -points,
			Note:   fmt.Sprintf("redeemed for coupon %s", code),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
		}

		usageLimit := int64(1)
		minOrder := 2 * valuePaise
		expires := s.now().Add(redeemCouponTTL)
		coupon, err = s.coupons.WithTx(tx).Create(ctx, &models.Coupon{
			Code:          code,
			DiscountType:  enums.DiscountTypeFixed,
			Value:         valuePaise,
			MinOrderPaise: minOrder,
			UsageLimit:    &usageLimit,
			ExpiresAt:     &expires,
			Active:        true,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create redemption coupon")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPointsRedeemed,
			AggregateType: enums.AggregatePointTransaction,
			AggregateID:   ledger.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.PointsRedeemedEvent{
				LedgerID:   ledger.ID,
				UserID:     userID,
				Points:     points,
				ValuePaise: valuePaise,
				CouponID:   coupon.ID,
				CouponCode: coupon.Code,
				Balance:    balance,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return coupon, nil
}

// AccrueOrderTx credits earned_order points for a delivered order inside the
// caller's transaction. Idempotent per order: the partial unique index on
// (user_id, order_id, type) swallows replays.
func (s *service) AccrueOrderTx(ctx context.Context, tx *gorm.DB, userID, orderID uuid.UUID, totalPaise int64) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return 0, err
	}

	points := int(totalPaise/10000) * cfg.LoyaltyPointsPer100
	if points <= 0 {
		return 0, nil
	}

	txRepo := s.repo.WithTx(tx)
	_, err = txRepo.Insert(ctx, &models.PointTransaction{
		UserID:  userID,
		OrderID: &orderID,
		Type:    enums.PointTransactionTypeEarnedOrder,
		Points:  points,
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}

	balance, _, err := txRepo.AdjustBalance(ctx, userID, points)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit points")
	}

	err = s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPointsAccrued,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data: payloads.PointsAccruedEvent{
			UserID:  userID,
			OrderID: orderID,
			Points:  points,
			Balance: balance,
		},
	})
	if err != nil {
		return 0, err
	}
	return points, nil
}

// ReferralBonusTx pays the referrer's bonus exactly once per referred user,
// keyed on the referred user's referral_rewarded flag.
func (s *service) ReferralBonusTx(ctx context.Context, tx *gorm.DB, referrerID, referredUserID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	if cfg.ReferralBonusPoints <= 0 {
		return 0, nil
	}

	txRepo := s.repo.WithTx(tx)
	granted, err := txRepo.MarkReferralRewarded(ctx, referredUserID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark referral rewarded")
	}
	if !granted {
		return 0, nil
	}

	_, err = txRepo.Insert(ctx, &models.PointTransaction{
		UserID: referrerID,
		Type:   enums.PointTransactionTypeReferralBonus,
		Points: cfg.ReferralBonusPoints,
		Note:   fmt.Sprintf("referral bonus for user %s", referredUserID),
	})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}

	if _, _, err := txRepo.AdjustBalance(ctx, referrerID, cfg.ReferralBonusPoints); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit referral bonus")
	}

	err = s.events.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReferralBonusAwarded,
		AggregateType: enums.AggregateUser,
		AggregateID:   referredUserID,
		Data: payloads.ReferralBonusAwardedEvent{
			ReferrerID:     referrerID,
			ReferredUserID: referredUserID,
			Points:         cfg.ReferralBonusPoints,
		},
	})
	if err != nil {
		return 0, err
	}
	return cfg.ReferralBonusPoints, nil
}

package giftcards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/merakimart/backend/pkg/db"
	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/outbox"
	"github.com/merakimart/backend/pkg/outbox/payloads"
	"github.com/merakimart/backend/pkg/security"
)

// codeRetries bounds how many times Issue retries on a code collision.
const codeRetries = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// IssueInput carries the admin issue payload.
type IssueInput struct {
	AmountPaise int64      `json:"amount_paise"`
	IssuedToID  *uuid.UUID `json:"issued_to_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// RedeemInput is a standalone debit request against a card.
type RedeemInput struct {
	Code        string     `json:"code"`
	AmountPaise int64      `json:"amount_paise"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
}

// Service exposes gift card issuance, balance checks, and debits. Checkout
// debits run on a transaction via WithTx so they commit with the order.
type Service interface {
	Issue(ctx context.Context, actor *outbox.ActorRef, input IssueInput) (*models.GiftCard, error)
	GetByCode(ctx context.Context, code string) (*models.GiftCard, error)
	Redeem(ctx context.Context, userID uuid.UUID, input RedeemInput) (*models.GiftCardRedemption, error)
	Disable(ctx context.Context, id uuid.UUID) error
	ListRedemptions(ctx context.Context, giftCardID uuid.UUID) ([]models.GiftCardRedemption, error)
	DebitTx(ctx context.Context, tx *gorm.DB, card *models.GiftCard, userID uuid.UUID, orderID *uuid.UUID, amountPaise int64) (*models.GiftCardRedemption, error)
	CreditTx(ctx context.Context, tx *gorm.DB, giftCardID uuid.UUID, amountPaise int64) error
	RefundOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error)
}

type service struct {
	repo   GiftCardRepository
	tx     txRunner
	events outboxEmitter
	now    func() time.Time
}

// NewService builds a gift card service backed by the provided stack.
func NewService(repo GiftCardRepository, tx txRunner, events outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("gift card repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, events: events, now: time.Now}, nil
}

func (s *service) Issue(ctx context.Context, actor *outbox.ActorRef, input IssueInput) (*models.GiftCard, error) {
	if input.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount_paise must be positive")
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be in the future")
	}

	var card *models.GiftCard
	for attempt := 0; attempt < codeRetries; attempt++ {
		code, err := security.GenerateGiftCardCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate gift card code")
		}

		candidate := &models.GiftCard{
			Code:         code,
			InitialPaise: input.AmountPaise,
			BalancePaise: input.AmountPaise,
			Status:       enums.GiftCardStatusActive,
			IssuedToID:   input.IssuedToID,
			ExpiresAt:    input.ExpiresAt,
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			created, err := txRepo.Create(ctx, candidate)
			if err != nil {
				return err
			}
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventGiftCardIssued,
				AggregateType: enums.AggregateGiftCard,
				AggregateID:   created.ID,
				Actor:         actor,
				Data: payloads.GiftCardIssuedEvent{
					GiftCardID:   created.ID,
					IssuedToID:   created.IssuedToID,
					InitialPaise: created.InitialPaise,
				},
			})
		})
		if err == nil {
			card = candidate
			break
		}
		if dbpkg.IsUniqueViolation(err, "") {
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue gift card")
	}
	if card == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gift card code space exhausted")
	}
	return card, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	card, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gift card not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift card")
	}
	return card, nil
}

// Redeem debits the card outside of checkout, in its own transaction. The
// optional order reference ties the debit to an order for later refunds.
func (s *service) Redeem(ctx context.Context, userID uuid.UUID, input RedeemInput) (*models.GiftCardRedemption, error) {
	card, err := s.GetByCode(ctx, strings.TrimSpace(input.Code))
	if err != nil {
		return nil, err
	}

	var redemption *models.GiftCardRedemption
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		redemption, err = s.DebitTx(ctx, tx, card, userID, input.OrderID, input.AmountPaise)
		return err
	})
	if err != nil {
		return nil, err
	}
	return redemption, nil
}

func (s *service) Disable(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "gift card not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift card")
	}
	if err := s.repo.SetStatus(ctx, id, enums.GiftCardStatusDisabled); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "disable gift card")
	}
	return nil
}

func (s *service) ListRedemptions(ctx context.Context, giftCardID uuid.UUID) ([]models.GiftCardRedemption, error) {
	rows, err := s.repo.ListRedemptions(ctx, giftCardID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list gift card redemptions")
	}
	return rows, nil
}

// DebitTx debits the card inside the caller's transaction and writes the
// audit row plus the outbox event. The caller validates eligibility first via
// Eligible.
func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, card *models.GiftCard, userID uuid.UUID, orderID *uuid.UUID, amountPaise int64) (*models.GiftCardRedemption, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if amountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}
	if err := Eligible(card, s.now()); err != nil {
		return nil, err
	}
	if card.IssuedToID != nil && *card.IssuedToID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gift card is bound to another account")
	}

	txRepo := s.repo.WithTx(tx)
	debited, err := txRepo.Debit(ctx, card.ID, amountPaise)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit gift card")
	}
	if !debited {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient gift card balance")
	}

	redemption, err := txRepo.InsertRedemption(ctx, &models.GiftCardRedemption{
		GiftCardID:  card.ID,
		UserID:      userID,
		OrderID:     orderID,
		AmountPaise: amountPaise,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record gift card redemption")
	}

	err = s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventGiftCardRedeemed,
		AggregateType: enums.AggregateGiftCard,
		AggregateID:   redemption.ID,
		Actor:         &outbox.ActorRef{UserID: userID},
		Data: payloads.GiftCardRedeemedEvent{
			RedemptionID: redemption.ID,
			GiftCardID:   card.ID,
			UserID:       userID,
			OrderID:      orderID,
			AmountPaise:  amountPaise,
			BalancePaise: card.BalancePaise - amountPaise,
		},
	})
	if err != nil {
		return nil, err
	}
	return redemption, nil
}

// CreditTx restores a previously debited amount inside the caller's transaction.
func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, giftCardID uuid.UUID, amountPaise int64) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if amountPaise <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if err := s.repo.WithTx(tx).Credit(ctx, giftCardID, amountPaise); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit gift card")
	}
	return nil
}

// RefundOrderTx credits back every debit applied against the order, inside
// the caller's transaction. Returns the total amount restored. Used when a
// paid-for order is cancelled.
func (s *service) RefundOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	txRepo := s.repo.WithTx(tx)
	rows, err := txRepo.ListRedemptionsByOrder(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order redemptions")
	}

	var restored int64
	for _, row := range rows {
		if err := txRepo.Credit(ctx, row.GiftCardID, row.AmountPaise); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit gift card")
		}
		restored += row.AmountPaise
	}
	return restored, nil
}

// Eligible reports whether the card can be spent right now.
func Eligible(card *models.GiftCard, now time.Time) error {
	if card == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gift card is required")
	}
	switch card.Status {
	case enums.GiftCardStatusActive:
	case enums.GiftCardStatusRedeemed:
		return pkgerrors.New(pkgerrors.CodeValidation, "gift card is fully redeemed")
	case enums.GiftCardStatusExpired:
		return pkgerrors.New(pkgerrors.CodeValidation, "gift card has expired")
	case enums.GiftCardStatusDisabled:
		return pkgerrors.New(pkgerrors.CodeValidation, "gift card is disabled")
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "gift card is not spendable")
	}
	if card.ExpiresAt != nil && !now.Before(*card.ExpiresAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "gift card has expired")
	}
	if card.BalancePaise <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "gift card has no balance")
	}
	return nil
}

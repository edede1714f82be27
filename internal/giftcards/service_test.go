package giftcards

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	pkgerrors "github.com/merakimart/backend/pkg/errors"
	"github.com/merakimart/backend/pkg/outbox"
)

type stubGiftCardRepo struct {
	card        *models.GiftCard
	findErr     error
	created     *models.GiftCard
	createErr   error
	debitOK     bool
	debitErr    error
	credited    int64
	status      enums.GiftCardStatus
	redemption  *models.GiftCardRedemption
	redemptions []models.GiftCardRedemption
}

func (s *stubGiftCardRepo) WithTx(tx *gorm.DB) GiftCardRepository { return s }

func (s *stubGiftCardRepo) Create(ctx context.Context, card *models.GiftCard) (*models.GiftCard, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	card.ID = uuid.New()
	s.created = card
	return card, nil
}

func (s *stubGiftCardRepo) FindByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.card, nil
}

func (s *stubGiftCardRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.GiftCard, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.card, nil
}

func (s *stubGiftCardRepo) Debit(ctx context.Context, id uuid.UUID, amountPaise int64) (bool, error) {
	if s.debitErr != nil {
		return false, s.debitErr
	}
	return s.debitOK, nil
}

func (s *stubGiftCardRepo) Credit(ctx context.Context, id uuid.UUID, amountPaise int64) error {
	s.credited += amountPaise
	return nil
}

func (s *stubGiftCardRepo) SetStatus(ctx context.Context, id uuid.UUID, status enums.GiftCardStatus) error {
	s.status = status
	return nil
}

func (s *stubGiftCardRepo) InsertRedemption(ctx context.Context, row *models.GiftCardRedemption) (*models.GiftCardRedemption, error) {
	row.ID = uuid.New()
	s.redemption = row
	return row, nil
}

func (s *stubGiftCardRepo) ListRedemptions(ctx context.Context, giftCardID uuid.UUID) ([]models.GiftCardRedemption, error) {
	return s.redemptions, nil
}

func (s *stubGiftCardRepo) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func (s *stubGiftCardRepo) ListRedemptionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.GiftCardRedemption, error) {
	var rows []models.GiftCardRedemption
	for _, row := range s.redemptions {
		if row.OrderID != nil && *row.OrderID == orderID {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newTestService(t *testing.T, repo *stubGiftCardRepo, emitter *stubEmitter) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, emitter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func activeCard(balance int64) *models.GiftCard {
	return &models.GiftCard{
		ID:           uuid.New(),
		Code:         "MMGC-TEST-CARD-0001",
		InitialPaise: balance,
		BalancePaise: balance,
		Status:       enums.GiftCardStatusActive,
	}
}

func TestServiceIssueValidatesAmount(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubGiftCardRepo{}, &stubEmitter{})

	_, err := svc.Issue(context.Background(), nil, IssueInput{AmountPaise: 0})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceIssueEmitsEvent(t *testing.T) {
	t.Parallel()

	repo := &stubGiftCardRepo{}
	emitter := &stubEmitter{}
	svc := newTestService(t, repo, emitter)

	card, err := svc.Issue(context.Background(), nil, IssueInput{AmountPaise: 100000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.BalancePaise != 100000 || card.Status != enums.GiftCardStatusActive {
		t.Fatalf("unexpected card: %+v", card)
	}
	if card.Code == "" {
		t.Fatal("expected generated code")
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.EventGiftCardIssued {
		t.Fatalf("unexpected events: %+v", emitter.events)
	}
}

func TestEligible(t *testing.T) {
	t.Parallel()

	now := time.Now()

	if err := Eligible(activeCard(5000), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	disabled := activeCard(5000)
	disabled.Status = enums.GiftCardStatusDisabled
	if err := Eligible(disabled, now); err == nil {
		t.Fatal("expected error for disabled card")
	}

	expired := activeCard(5000)
	past := now.Add(-time.Hour)
	expired.ExpiresAt = &past
	if err := Eligible(expired, now); err == nil {
		t.Fatal("expected error for expired card")
	}
}

func TestServiceDebitTxInsufficientBalance(t *testing.T) {
	t.Parallel()

	repo := &stubGiftCardRepo{debitOK: false}
	svc := newTestService(t, repo, &stubEmitter{})

	_, err := svc.DebitTx(context.Background(), &gorm.DB{}, activeCard(1000), uuid.New(), nil, 5000)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestServiceDebitTxWritesAuditAndEvent(t *testing.T) {
	t.Parallel()

	repo := &stubGiftCardRepo{debitOK: true}
	emitter := &stubEmitter{}
	svc := newTestService(t, repo, emitter)

	card := activeCard(10000)
	userID := uuid.New()
	orderID := uuid.New()

	redemption, err := svc.DebitTx(context.Background(), &gorm.DB{}, card, userID, &orderID, 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if redemption.AmountPaise != 4000 || redemption.GiftCardID != card.ID {
		t.Fatalf("unexpected redemption: %+v", redemption)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventGiftCardRedeemed {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	if event.AggregateID != redemption.ID {
		t.Fatal("redemption row must be the event aggregate")
	}
}

package giftcards

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
)

// GiftCardRepository defines the persistence surface required by the gift
// card service.
type GiftCardRepository interface {
	WithTx(tx *gorm.DB) GiftCardRepository
	Create(ctx context.Context, card *models.GiftCard) (*models.GiftCard, error)
	FindByCode(ctx context.Context, code string) (*models.GiftCard, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.GiftCard, error)
	Debit(ctx context.Context, id uuid.UUID, amountPaise int64) (bool, error)
	Credit(ctx context.Context, id uuid.UUID, amountPaise int64) error
	SetStatus(ctx context.Context, id uuid.UUID, status enums.GiftCardStatus) error
	InsertRedemption(ctx context.Context, row *models.GiftCardRedemption) (*models.GiftCardRedemption, error)
	ListRedemptions(ctx context.Context, giftCardID uuid.UUID) ([]models.GiftCardRedemption, error)
	ListRedemptionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.GiftCardRedemption, error)
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

// Repository persists gift cards and their redemption audit rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a gift card repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) GiftCardRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new gift card row.
func (r *Repository) Create(ctx context.Context, card *models.GiftCard) (*models.GiftCard, error) {
	if err := r.db.WithContext(ctx).Create(card).Error; err != nil {
		return nil, err
	}
	return card, nil
}

// FindByCode loads a card by its code, ignoring case and surrounding space.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByID loads a card by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// Debit conditionally subtracts from the balance; returns false when the
// card lacks sufficient balance. Also flips status to redeemed when the
// balance reaches zero.
func (r *Repository) Debit(ctx context.Context, id uuid.UUID, amountPaise int64) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
UPDATE gift_cards
SET balance_paise = balance_paise - ?,
    status = CASE WHEN balance_paise - ? = 0 THEN 'redeemed'::gift_card_status ELSE status END,
    updated_at = now()
WHERE id = ? AND status = 'active' AND balance_paise >= ?`,
		amountPaise, amountPaise, id, amountPaise,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Credit restores balance when an order that debited the card is cancelled.
// A fully redeemed card becomes active again.
func (r *Repository) Credit(ctx context.Context, id uuid.UUID, amountPaise int64) error {
	return r.db.WithContext(ctx).Exec(`
UPDATE gift_cards
SET balance_paise = balance_paise + ?,
    status = CASE WHEN status = 'redeemed' THEN 'active'::gift_card_status ELSE status END,
    updated_at = now()
WHERE id = ?`,
		amountPaise, id,
	).Error
}

// SetStatus updates the card status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.GiftCardStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.GiftCard{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

// InsertRedemption appends an audit row for a debit.
func (r *Repository) InsertRedemption(ctx context.Context, row *models.GiftCardRedemption) (*models.GiftCardRedemption, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// ListRedemptions returns the debit history for a card, newest first.
func (r *Repository) ListRedemptions(ctx context.Context, giftCardID uuid.UUID) ([]models.GiftCardRedemption, error) {
	var rows []models.GiftCardRedemption
	err := r.db.WithContext(ctx).
		Where("gift_card_id = ?", giftCardID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListRedemptionsByOrder returns the debits applied against a single order.
func (r *Repository) ListRedemptionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.GiftCardRedemption, error) {
	var rows []models.GiftCardRedemption
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ExpireBefore flips active cards past their expiry to expired. Returns the
// number of cards swept.
func (r *Repository) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GiftCard{}).
		Where("status = ?", enums.GiftCardStatusActive).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Update("status", enums.GiftCardStatusExpired)
	return result.RowsAffected, result.Error
}

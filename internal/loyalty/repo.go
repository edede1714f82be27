package loyalty

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/pagination"
)

// LedgerRepository defines the persistence surface required by the loyalty
// service. All balance updates pair a ledger insert with a conditional update
// of users.loyalty_points in the same transaction.
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	Insert(ctx context.Context, row *models.PointTransaction) (*models.PointTransaction, error)
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta int) (int, bool, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointTransaction, string, error)
	MarkReferralRewarded(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Repository persists the loyalty ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Insert appends a ledger row.
func (r *Repository) Insert(ctx context.Context, row *models.PointTransaction) (*models.PointTransaction, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// AdjustBalance applies delta to the user's cached balance. Negative deltas
// are conditional on sufficient balance; returns the new balance and whether
// the update applied.
func (r *Repository) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int) (int, bool, error) {
	var balance int
	result := r.db.WithContext(ctx).Raw(`
UPDATE users
SET loyalty_points = loyalty_points + ?,
    updated_at = now()
WHERE id = ? AND loyalty_points + ? >= 0
RETURNING loyalty_points`,
		delta, userID, delta,
	).Scan(&balance)
	if result.Error != nil {
		return 0, false, result.Error
	}
	return balance, result.RowsAffected == 1, nil
}

// Balance reads the cached balance.
func (r *Repository) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var balance int
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Pluck("loyalty_points", &balance).Error
	return balance, err
}

// List returns the user's ledger page, newest first, with a cursor for the
// next page.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointTransaction, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).
		Where("user_id = ?", userID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PointTransaction
	err = qb.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}

// MarkReferralRewarded flips the referral flag exactly once; returns false
// when the bonus was already granted.
func (r *Repository) MarkReferralRewarded(ctx context.Context, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND referral_rewarded = false", userID).
		Update("referral_rewarded", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	"github.com/merakimart/backend/pkg/pagination"
)

// OrderRepository defines the persistence surface required by the order
// service.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByRazorpayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	List(ctx context.Context, query ListOrdersInput) (*OrderListResult, error)
	ListPendingRazorpayBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ListOrdersInput narrows the order listing. A nil UserID lists across all
// customers (admin view).
type ListOrdersInput struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

// OrderListResult is one page of orders plus the cursor for the next page.
type OrderListResult struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Repository persists orders and their item snapshots.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts the order together with its item snapshots.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByRazorpayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "razorpay_order_id = ?", gatewayOrderID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Save writes back every column of a previously loaded order.
func (r *Repository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Omit("Items").
		Save(order).Error
}

// List pages newest-first with a keyset cursor on (created_at, id).
func (r *Repository) List(ctx context.Context, query ListOrdersInput) (*OrderListResult, error) {
	limit := pagination.NormalizeLimit(query.Limit)

	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if query.UserID != nil {
		q = q.Where("user_id = ?", *query.UserID)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := &OrderListResult{Orders: rows}
	if len(rows) > limit {
		result.Orders = rows[:limit]
		last := result.Orders[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

// ListPendingRazorpayBefore returns Razorpay orders still awaiting payment
// that were created before the cutoff. Fed to the payment TTL sweep.
func (r *Repository) ListPendingRazorpayBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ?", enums.PaymentMethodRazorpay).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("status = ?", enums.OrderStatusProcessing).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

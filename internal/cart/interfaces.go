package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, record *models.Cart) (*models.Cart, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	UpsertItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, productID uuid.UUID) error
	DeleteAllItems(ctx context.Context, cartID uuid.UUID) error
	SetCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error
	RecomputeTotals(ctx context.Context, cartID uuid.UUID) error
}

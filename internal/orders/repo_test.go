package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/merakimart/backend/pkg/db/models"
	"github.com/merakimart/backend/pkg/enums"
	"github.com/merakimart/backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'processing',
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  subtotal_paise INTEGER NOT NULL,
  discount_paise INTEGER NOT NULL DEFAULT 0,
  shipping_paise INTEGER NOT NULL DEFAULT 0,
  gift_card_paise INTEGER NOT NULL DEFAULT 0,
  total_paise INTEGER NOT NULL,
  coupon_id TEXT,
  coupon_code TEXT,
  shipping_address TEXT NOT NULL,
  razorpay_order_id TEXT,
  razorpay_payment_id TEXT,
  razorpay_signature TEXT,
  paid_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_paise INTEGER NOT NULL,
  line_paise INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func testAddress() types.Address {
	return types.Address{
		FullName:   "Asha Rao",
		Phone:      "9811111111",
		Line1:      "14 MG Road",
		City:       "Bengaluru",
		State:      "KA",
		PostalCode: "560001",
		Country:    "IN",
	}
}

func makeTestOrder(userID uuid.UUID, createdAt time.Time) *models.Order {
	return &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          enums.OrderStatusProcessing,
		PaymentMethod:   enums.PaymentMethodCOD,
		PaymentStatus:   enums.PaymentStatusPending,
		SubtotalPaise:   80000,
		ShippingPaise:   5000,
		TotalPaise:      85000,
		ShippingAddress: testAddress(),
		CreatedAt:       createdAt,
		Items: []models.OrderItem{
			{
				ID:             uuid.New(),
				ProductID:      uuid.New(),
				ProductName:    "Steel Bottle",
				Quantity:       2,
				UnitPricePaise: 40000,
				LinePaise:      80000,
			},
		},
	}
}

func TestRepositoryCreateAndFindByID(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	created, err := repo.Create(ctx, makeTestOrder(userID, time.Now().UTC()))
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, found.UserID)
	assert.Equal(t, int64(85000), found.TotalPaise)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Steel Bottle", found.Items[0].ProductName)
	assert.Equal(t, created.ID, found.Items[0].OrderID)
	assert.Equal(t, "Bengaluru", found.ShippingAddress.City)
}

func TestRepositoryFindByRazorpayOrderID(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()

	order := makeTestOrder(uuid.New(), time.Now().UTC())
	order.PaymentMethod = enums.PaymentMethodRazorpay
	gatewayID := "order_" + uuid.NewString()[:8]
	order.RazorpayOrderID = &gatewayID
	_, err := repo.Create(ctx, order)
	require.NoError(t, err)

	found, err := repo.FindByRazorpayOrderID(ctx, gatewayID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = repo.FindByRazorpayOrderID(ctx, "order_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		order := makeTestOrder(userID, base.Add(time.Duration(i)*time.Hour))
		_, err := repo.Create(ctx, order)
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	page1, err := repo.List(ctx, ListOrdersInput{UserID: &userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1.Orders, 2)
	assert.Equal(t, ids[2], page1.Orders[0].ID)
	assert.Equal(t, ids[1], page1.Orders[1].ID)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := repo.List(ctx, ListOrdersInput{UserID: &userID, Limit: 2, Cursor: page1.NextCursor})
	require.NoError(t, err)
	require.Len(t, page2.Orders, 1)
	assert.Equal(t, ids[0], page2.Orders[0].ID)
	assert.Empty(t, page2.NextCursor)
}

func TestRepositoryListFiltersByStatus(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	userID := uuid.New()

	shipped := makeTestOrder(userID, time.Now().UTC())
	shipped.Status = enums.OrderStatusShipped
	_, err := repo.Create(ctx, shipped)
	require.NoError(t, err)
	_, err = repo.Create(ctx, makeTestOrder(userID, time.Now().UTC()))
	require.NoError(t, err)

	status := enums.OrderStatusShipped
	list, err := repo.List(ctx, ListOrdersInput{UserID: &userID, Status: &status, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, shipped.ID, list.Orders[0].ID)
}

func TestRepositoryListPendingRazorpayBefore(t *testing.T) {
	repo := NewRepository(setupOrdersTestDB(t))
	ctx := context.Background()
	userID := uuid.New()
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	stale := makeTestOrder(userID, cutoff.Add(-2*time.Hour))
	stale.PaymentMethod = enums.PaymentMethodRazorpay
	staleGateway := "order_stale"
	stale.RazorpayOrderID = &staleGateway
	_, err := repo.Create(ctx, stale)
	require.NoError(t, err)

	fresh := makeTestOrder(userID, cutoff.Add(time.Hour))
	fresh.PaymentMethod = enums.PaymentMethodRazorpay
	freshGateway := "order_fresh"
	fresh.RazorpayOrderID = &freshGateway
	_, err = repo.Create(ctx, fresh)
	require.NoError(t, err)

	cod := makeTestOrder(userID, cutoff.Add(-3*time.Hour))
	_, err = repo.Create(ctx, cod)
	require.NoError(t, err)

	paid := makeTestOrder(userID, cutoff.Add(-4*time.Hour))
	paid.PaymentMethod = enums.PaymentMethodRazorpay
	paidGateway := "order_paid"
	paid.RazorpayOrderID = &paidGateway
	paid.PaymentStatus = enums.PaymentStatusPaid
	_, err = repo.Create(ctx, paid)
	require.NoError(t, err)

	rows, err := repo.ListPendingRazorpayBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

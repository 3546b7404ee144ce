package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/internal/cart"
	"github.com/adisaputra/tokoku-backend/internal/stock"
	"github.com/adisaputra/tokoku-backend/internal/vouchers"
	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.StockHold{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.Voucher{},
		&models.UserVoucher{},
		&models.CartItem{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(testTxRunner{db: db}, NewRepository(db), vouchers.NewRepository(db), cart.NewRepository(db))
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, price int64, stockQty int) models.Product {
	t.Helper()
	product := models.Product{
		Name:     "Kemeja Batik",
		Price:    decimal.NewFromInt(price),
		Stock:    stockQty,
		IsActive: true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func seedHold(t *testing.T, db *gorm.DB, holder stock.Holder, product models.Product, qty int) {
	t.Helper()
	require.NoError(t, db.Create(&models.StockHold{
		UserID:    holder.UserID,
		SessionID: holder.SessionID,
		ProductID: product.ID,
		Quantity:  qty,
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}).Error)
}

func sessionHolder(id string) stock.Holder {
	return stock.Holder{SessionID: &id}
}

func shipping() ShippingDetails {
	return ShippingDetails{
		Name:       "Budi Santoso",
		Phone:      "+6281234567890",
		Address1:   "Jl. Merdeka No. 1",
		City:       "Bandung",
		Province:   "Jawa Barat",
		PostalCode: "40115",
		Email:      "budi@example.com",
	}
}

func TestCreateOrderCOD(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 50000, 10)
	holder := sessionHolder("sess-cod")
	seedHold(t, db, holder, product, 2)

	result, err := svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        holder,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCOD,
		ShippingCost:  decimal.NewFromInt(10000),
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusProcessing, result.Status)
	assert.True(t, strings.HasPrefix(result.OrderNumber, "TKO-"), "order number %s", result.OrderNumber)
	assert.Nil(t, result.TransactionID)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(110000)), "total = %s", result.TotalAmount)

	// COD decrements stock inside the same transaction
	var persisted models.Product
	require.NoError(t, db.First(&persisted, "id = ?", product.ID).Error)
	assert.Equal(t, 8, persisted.Stock)

	var holds int64
	require.NoError(t, db.Model(&models.StockHold{}).Count(&holds).Error)
	assert.Zero(t, holds)

	var items []models.OrderItem
	require.NoError(t, db.Where("order_id = ?", result.OrderID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "Kemeja Batik", items[0].ProductName)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, items[0].UnitPrice.Equal(decimal.NewFromInt(50000)))

	var history []models.OrderStatusHistory
	require.NoError(t, db.Where("order_id = ?", result.OrderID).Order("created_at ASC").Find(&history).Error)
	require.Len(t, history, 2)
	assert.Equal(t, enums.OrderStatusCreated, history[0].Status)
	assert.Equal(t, enums.OrderStatusProcessing, history[1].Status)
}

func TestCreateOrderDeferredPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 75000, 4)
	holder := sessionHolder("sess-deferred")
	seedHold(t, db, holder, product, 1)

	result, err := svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        holder,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
		ShippingCost:  decimal.Zero,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusAwaitingPayment, result.Status)
	require.NotNil(t, result.TransactionID)
	assert.True(t, strings.HasPrefix(*result.TransactionID, "TRX-"))

	// deferred payment leaves the physical counter alone until the webhook
	var persisted models.Product
	require.NoError(t, db.First(&persisted, "id = ?", product.ID).Error)
	assert.Equal(t, 4, persisted.Stock)

	var holds int64
	require.NoError(t, db.Model(&models.StockHold{}).Count(&holds).Error)
	assert.Zero(t, holds)
}

func TestCreateOrderExpiredSession(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        sessionHolder("sess-empty"),
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Message(), "expired")
}

func TestCreateOrderWithVoucherCode(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 50000, 10)
	holder := sessionHolder("sess-voucher")
	seedHold(t, db, holder, product, 2)

	voucher := models.Voucher{
		Code:              "TENOFF",
		Type:              enums.VoucherTypePercentage,
		Value:             decimal.NewFromInt(10),
		MinPurchaseAmount: decimal.NewFromInt(50000),
		IsActive:          true,
	}
	require.NoError(t, db.Create(&voucher).Error)

	code := "tenoff"
	result, err := svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        holder,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCOD,
		Voucher:       &VoucherRef{Code: &code},
		ShippingCost:  decimal.Zero,
	})
	require.NoError(t, err)
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(90000)), "total = %s", result.TotalAmount)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", result.OrderID).Error)
	require.NotNil(t, order.VoucherCode)
	assert.Equal(t, "TENOFF", *order.VoucherCode)
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(10000)))

	var persisted models.Voucher
	require.NoError(t, db.First(&persisted, "id = ?", voucher.ID).Error)
	assert.Equal(t, 1, persisted.UseCount)
}

func TestCreateOrderFixedVoucherClampsToZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 1500, 5)
	holder := sessionHolder("sess-clamp")
	seedHold(t, db, holder, product, 2)

	voucher := models.Voucher{
		Code:     "DISKON5K",
		Type:     enums.VoucherTypeFixedAmount,
		Value:    decimal.NewFromInt(5000),
		IsActive: true,
	}
	require.NoError(t, db.Create(&voucher).Error)

	code := "DISKON5K"
	result, err := svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        holder,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCOD,
		Voucher:       &VoucherRef{Code: &code},
		ShippingCost:  decimal.Zero,
	})
	require.NoError(t, err)
	assert.True(t, result.TotalAmount.IsZero(), "total = %s", result.TotalAmount)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", result.OrderID).Error)
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(3000)), "discount clamps to subtotal")
}

func TestCreateOrderUserVoucherAndCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 60000, 10)
	userID := uuid.New()
	holder := stock.Holder{UserID: &userID}
	seedHold(t, db, holder, product, 1)

	require.NoError(t, db.Create(&models.CartItem{
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  1,
	}).Error)

	voucher := models.Voucher{
		Code:     "WELCOME",
		Type:     enums.VoucherTypeFixedAmount,
		Value:    decimal.NewFromInt(10000),
		IsActive: true,
	}
	require.NoError(t, db.Create(&voucher).Error)
	claimed := models.UserVoucher{
		UserID:    userID,
		VoucherID: voucher.ID,
		Status:    enums.UserVoucherStatusAvailable,
	}
	require.NoError(t, db.Create(&claimed).Error)

	result, err := svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        holder,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodEWallet,
		Voucher:       &VoucherRef{UserVoucherID: &claimed.ID},
		ShippingCost:  decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	// 60000 - 10000 + 5000
	assert.True(t, result.TotalAmount.Equal(decimal.NewFromInt(55000)), "total = %s", result.TotalAmount)

	var redeemed models.UserVoucher
	require.NoError(t, db.First(&redeemed, "id = ?", claimed.ID).Error)
	assert.Equal(t, enums.UserVoucherStatusUsed, redeemed.Status)
	assert.NotNil(t, redeemed.UsedAt)

	var cartRows int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartRows).Error)
	assert.Zero(t, cartRows, "checkout clears the logged-in shopper's cart")
}

func TestCreateOrderRollsBackWhenStockRaces(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	product := seedProduct(t, db, 50000, 2)
	holder := sessionHolder("sess-race")
	seedHold(t, db, holder, product, 2)

	// a concurrent sale drains the counter below the held quantity
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", product.ID).Update("stock", 1).Error)

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        holder,
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeOutOfStock, pkgerrors.As(err).Code())

	// nothing from the failed checkout may persist
	var orderCount, holdCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, db.Model(&models.StockHold{}).Count(&holdCount).Error)
	assert.Zero(t, orderCount)
	assert.Equal(t, int64(1), holdCount, "holds survive the rollback")

	var persisted models.Product
	require.NoError(t, db.First(&persisted, "id = ?", product.ID).Error)
	assert.Equal(t, 1, persisted.Stock)
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	svc := newTestService(t, db)

	session := "sess-x"
	userID := uuid.New()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        stock.Holder{UserID: &userID, SessionID: &session},
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		Holder:        sessionHolder("sess-x"),
		Shipping:      shipping(),
		PaymentMethod: enums.PaymentMethod("CHECK"),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

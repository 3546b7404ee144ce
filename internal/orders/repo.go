package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/adisaputra/tokoku-backend/pkg/db"
	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

// Repository persists orders and their child rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	AppendStatusHistory(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, note *string) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindPendingPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Order, error)
	CancelStalePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	TopSpenderSince(ctx context.Context, since time.Time) (uuid.UUID, decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		// order_number and payment_transaction_id carry unique indexes; a
		// collision means the random suffix repeated and the checkout can
		// simply be retried.
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order identifier collision, retry checkout")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
	}
	return order, nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order items")
	}
	return nil
}

func (r *repository) AppendStatusHistory(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, note *string) error {
	row := models.OrderStatusHistory{
		OrderID: orderID,
		Status:  status,
		Note:    note,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert status history")
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("status", status)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update order status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func (r *repository) FindItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	return items, nil
}

// FindPendingPaymentByTransactionID matches both the transaction id and the
// awaiting-payment status in one query; no match means the webhook was
// already applied or references an unknown id, and the caller treats both as
// a safe no-op.
func (r *repository) FindPendingPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("payment_transaction_id = ? AND status = ?", transactionID, enums.OrderStatusAwaitingPayment).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending order")
	}
	return &order, nil
}

// CancelStalePendingBefore bulk-cancels awaiting-payment orders older than the
// cutoff. Stock is deliberately left untouched: deferred-payment orders never
// decremented it.
func (r *repository) CancelStalePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND order_date < ?", enums.OrderStatusAwaitingPayment, cutoff).
		Update("status", enums.OrderStatusCanceled)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "cancel stale orders")
	}
	return res.RowsAffected, nil
}

func (r *repository) TopSpenderSince(ctx context.Context, since time.Time) (uuid.UUID, decimal.Decimal, error) {
	var row struct {
		UserID uuid.UUID       `gorm:"column:user_id"`
		Spent  decimal.Decimal `gorm:"column:spent"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("user_id, SUM(total_amount) AS spent").
		Where("user_id IS NOT NULL AND order_date >= ? AND status <> ?", since, enums.OrderStatusCanceled).
		Group("user_id").
		Order("spent DESC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return uuid.Nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find top spender")
	}
	return row.UserID, row.Spent, nil
}

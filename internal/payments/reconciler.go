package payments

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/internal/orders"
	"github.com/adisaputra/tokoku-backend/internal/stock"
	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Outcome says what a webhook delivery actually did.
type Outcome string

const (
	// OutcomeApplied means the order moved to processing and stock was
	// decremented.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop means the transaction id is unknown or the payment was
	// already applied; retried deliveries land here.
	OutcomeNoop Outcome = "noop"
	// OutcomeCanceled means stock ran out between checkout and payment and
	// the order was canceled.
	OutcomeCanceled Outcome = "canceled"
)

// Result reports the effect of one webhook delivery.
type Result struct {
	Outcome     Outcome
	OrderID     *uuid.UUID
	OrderNumber string
}

// Reconciler applies payment gateway confirmations to deferred-payment orders.
type Reconciler struct {
	tx   txRunner
	repo orders.Repository
	log  *logger.Logger
	now  func() time.Time
}

// NewReconciler builds the webhook reconciler.
func NewReconciler(tx txRunner, repo orders.Repository, log *logger.Logger) (*Reconciler, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Reconciler{tx: tx, repo: repo, log: log, now: time.Now}, nil
}

// ApplyPaymentSuccess settles a successful payment notification. Gateways
// retry deliveries, so the whole operation keys on the awaiting-payment
// status: once an order has left that status, every further delivery for its
// transaction id is a no-op success.
//
// When stock sold out between checkout and payment the order is canceled, the
// cancellation is committed, and an out-of-stock error is returned so the
// caller can surface the refund path. Stock already sold to others is never
// touched.
func (r *Reconciler) ApplyPaymentSuccess(ctx context.Context, transactionID string) (*Result, error) {
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	result := &Result{Outcome: OutcomeNoop}

	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)

		order, err := repo.FindPendingPaymentByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}
		if order == nil {
			return nil
		}

		items, err := repo.FindItemsByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := decrementOrderStock(ctx, tx, items); err != nil {
			return err
		}

		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing); err != nil {
			return err
		}
		if err := repo.AppendStatusHistory(ctx, order.ID, enums.OrderStatusProcessing, nil); err != nil {
			return err
		}

		id := order.ID
		result = &Result{Outcome: OutcomeApplied, OrderID: &id, OrderNumber: order.OrderNumber}
		return nil
	})
	if err == nil {
		return result, nil
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeOutOfStock {
		return nil, err
	}

	canceled, cancelErr := r.cancelPaidButUnfillable(ctx, transactionID)
	if cancelErr != nil {
		r.log.Error(ctx, "cancel unfillable paid order", cancelErr)
		return nil, cancelErr
	}
	if canceled != nil {
		id := canceled.ID
		result = &Result{Outcome: OutcomeCanceled, OrderID: &id, OrderNumber: canceled.OrderNumber}
	}
	return result, err
}

// cancelPaidButUnfillable commits the cancellation in its own transaction so
// it survives the rolled-back settlement attempt.
func (r *Reconciler) cancelPaidButUnfillable(ctx context.Context, transactionID string) (*models.Order, error) {
	var canceled *models.Order
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)

		order, err := repo.FindPendingPaymentByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}
		if order == nil {
			return nil
		}
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCanceled); err != nil {
			return err
		}
		note := "stock sold out before payment settled"
		if err := repo.AppendStatusHistory(ctx, order.ID, enums.OrderStatusCanceled, &note); err != nil {
			return err
		}
		canceled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return canceled, nil
}

// decrementOrderStock applies the order's items to the physical counters in
// ascending stock-unit order for consistent lock acquisition.
func decrementOrderStock(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	sorted := make([]models.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		a := stock.Unit{ProductID: sorted[i].ProductID, VariantID: sorted[i].VariantID}
		b := stock.Unit{ProductID: sorted[j].ProductID, VariantID: sorted[j].VariantID}
		return a.Less(b)
	})

	recompute := map[uuid.UUID]bool{}
	for _, item := range sorted {
		unit := stock.Unit{ProductID: item.ProductID, VariantID: item.VariantID}
		if err := stock.LockAndDecrement(ctx, tx, unit, item.Quantity); err != nil {
			return err
		}
		if item.VariantID != nil {
			recompute[item.ProductID] = true
		}
	}
	return stock.RecomputeParentStocks(ctx, tx, recompute)
}

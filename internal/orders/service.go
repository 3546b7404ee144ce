package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/internal/cart"
	"github.com/adisaputra/tokoku-backend/internal/stock"
	"github.com/adisaputra/tokoku-backend/internal/vouchers"
	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service converts a shopper's active holds into a durable order.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	voucherRepo vouchers.Repository
	cartRepo    cart.Repository
	now         func() time.Time
}

// NewService builds the order creation service.
func NewService(tx txRunner, repo Repository, voucherRepo vouchers.Repository, cartRepo cart.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if voucherRepo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		voucherRepo: voucherRepo,
		cartRepo:    cartRepo,
		now:         time.Now,
	}, nil
}

// CreateOrder runs the whole checkout conversion as one transaction: load
// holds, price the items, evaluate the voucher, insert the order, decrement
// stock when paying on delivery, consume the voucher, clear cart and holds.
// Any failure rolls the entire transaction back; there is never a partial
// order, partial decrement or partial voucher consumption.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if !input.Holder.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "holder must be a user or a session, not both")
	}
	if !input.PaymentMethod.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	if input.ShippingCost.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping cost cannot be negative")
	}

	now := s.now().UTC()
	var result *CreateOrderResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		voucherRepo := s.voucherRepo.WithTx(tx)

		holds, err := stock.ActiveHolds(ctx, tx, input.Holder, now)
		if err != nil {
			return err
		}
		if len(holds) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout session expired, please restart checkout")
		}

		items, subtotal, err := priceHolds(ctx, tx, holds)
		if err != nil {
			return err
		}

		discount := decimal.Zero
		var voucher *models.Voucher
		var claimed *models.UserVoucher
		var voucherCode *string
		if input.Voucher != nil {
			voucher, claimed, err = s.resolveVoucher(ctx, voucherRepo, input.Holder, *input.Voucher)
			if err != nil {
				return err
			}
			evaluated, err := vouchers.Evaluate(voucher, subtotal, now)
			if err != nil {
				return err
			}
			discount = evaluated.Amount
			code := voucher.Code
			voucherCode = &code
		}

		total := subtotal.Sub(discount).Add(input.ShippingCost)

		status := enums.OrderStatusAwaitingPayment
		var transactionID *string
		if input.PaymentMethod == enums.PaymentMethodCOD {
			status = enums.OrderStatusProcessing
		} else {
			generated := newTransactionID()
			transactionID = &generated
		}

		order := &models.Order{
			OrderNumber:          newOrderNumber(now),
			UserID:               input.Holder.UserID,
			ShippingName:         input.Shipping.Name,
			ShippingPhone:        input.Shipping.Phone,
			ShippingAddress1:     input.Shipping.Address1,
			ShippingAddress2:     input.Shipping.Address2,
			ShippingCity:         input.Shipping.City,
			ShippingProvince:     input.Shipping.Province,
			ShippingPostalCode:   input.Shipping.PostalCode,
			Email:                input.Shipping.Email,
			Subtotal:             subtotal,
			DiscountAmount:       discount,
			ShippingCost:         input.ShippingCost,
			TotalAmount:          total,
			VoucherCode:          voucherCode,
			Status:               status,
			PaymentMethod:        input.PaymentMethod,
			PaymentTransactionID: transactionID,
			OrderDate:            now,
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return err
		}

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return err
		}
		if err := repo.AppendStatusHistory(ctx, order.ID, enums.OrderStatusCreated, nil); err != nil {
			return err
		}
		if err := repo.AppendStatusHistory(ctx, order.ID, status, nil); err != nil {
			return err
		}

		// COD settles on delivery, so its stock leaves the pool right now.
		// Deferred payments keep stock in the pool until the gateway confirms.
		if input.PaymentMethod == enums.PaymentMethodCOD {
			if err := decrementHeldStock(ctx, tx, holds); err != nil {
				return err
			}
		}

		if voucher != nil {
			if err := voucherRepo.IncrementUseCount(ctx, voucher.ID); err != nil {
				return err
			}
			if claimed != nil {
				if err := voucherRepo.RedeemUserVoucher(ctx, claimed.ID, now); err != nil {
					return err
				}
			}
		}

		if input.Holder.UserID != nil {
			if err := s.cartRepo.WithTx(tx).ClearForUser(ctx, *input.Holder.UserID); err != nil {
				return err
			}
		}
		if err := stock.DeleteHolds(ctx, tx, input.Holder); err != nil {
			return err
		}

		result = &CreateOrderResult{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Status:        status,
			TotalAmount:   total,
			TransactionID: transactionID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) resolveVoucher(ctx context.Context, repo vouchers.Repository, holder stock.Holder, ref VoucherRef) (*models.Voucher, *models.UserVoucher, error) {
	if ref.UserVoucherID != nil {
		if holder.UserID == nil {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "claimed vouchers require a logged-in shopper")
		}
		claimed, err := repo.FindAvailableUserVoucher(ctx, *ref.UserVoucherID, *holder.UserID)
		if err != nil {
			return nil, nil, err
		}
		return claimed.Voucher, claimed, nil
	}
	if ref.Code != nil {
		voucher, err := repo.FindActiveByCode(ctx, *ref.Code)
		if err != nil {
			return nil, nil, err
		}
		return voucher, nil, nil
	}
	return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher reference is empty")
}

// priceHolds resolves each held unit to its current price and snapshots the
// order items. A vanished product aborts the checkout; it must restart.
func priceHolds(ctx context.Context, tx *gorm.DB, holds []models.StockHold) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(holds))
	subtotal := decimal.Zero

	for _, hold := range holds {
		var product models.Product
		err := tx.WithContext(ctx).Where("id = ?", hold.ProductID).First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer available")
			}
			return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product \""+product.Name+"\" no longer available")
		}

		var variantName *string
		if hold.VariantID != nil {
			var variant models.ProductVariant
			err := tx.WithContext(ctx).
				Where("id = ? AND product_id = ?", *hold.VariantID, hold.ProductID).
				First(&variant).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product variant no longer available")
				}
				return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
			}
			variantName = &variant.Name
		}

		price := product.EffectivePrice()
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(hold.Quantity))))
		items = append(items, models.OrderItem{
			ProductID:   hold.ProductID,
			VariantID:   hold.VariantID,
			ProductName: product.Name,
			VariantName: variantName,
			Quantity:    hold.Quantity,
			UnitPrice:   price,
		})
	}

	return items, subtotal, nil
}

// decrementHeldStock walks the holds in ascending stock-unit order (the order
// ActiveHolds returns them) so concurrent checkouts lock rows consistently.
func decrementHeldStock(ctx context.Context, tx *gorm.DB, holds []models.StockHold) error {
	recompute := map[uuid.UUID]bool{}
	for _, hold := range holds {
		unit := stock.Unit{ProductID: hold.ProductID, VariantID: hold.VariantID}
		if err := stock.LockAndDecrement(ctx, tx, unit, hold.Quantity); err != nil {
			return err
		}
		if hold.VariantID != nil {
			recompute[hold.ProductID] = true
		}
	}
	return stock.RecomputeParentStocks(ctx, tx, recompute)
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TKO-%s-%s", now.Format("20060102"), suffix)
}

func newTransactionID() string {
	return "TRX-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

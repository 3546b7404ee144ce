package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adisaputra/tokoku-backend/api/responses"
	"github.com/adisaputra/tokoku-backend/api/validators"
	"github.com/adisaputra/tokoku-backend/internal/orders"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

type shippingBody struct {
	Name       string  `json:"name" validate:"required,min=2,max=128"`
	Phone      string  `json:"phone" validate:"required,min=6,max=24"`
	Address1   string  `json:"address1" validate:"required,max=255"`
	Address2   *string `json:"address2,omitempty" validate:"omitempty,max=255"`
	City       string  `json:"city" validate:"required,max=128"`
	Province   string  `json:"province" validate:"required,max=128"`
	PostalCode string  `json:"postal_code" validate:"required,max=16"`
	Email      string  `json:"email" validate:"required,email"`
}

type createOrderBody struct {
	Shipping      shippingBody    `json:"shipping" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=COD BANK_TRANSFER E_WALLET"`
	VoucherCode   *string         `json:"voucher_code,omitempty" validate:"omitempty,min=1,max=64"`
	UserVoucherID *string         `json:"user_voucher_id,omitempty" validate:"omitempty,uuid4"`
	ShippingCost  decimal.Decimal `json:"shipping_cost"`
}

// OrderCreate converts the shopper's reservation into an order.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		holder, err := holderFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body createOrderBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if body.VoucherCode != nil && body.UserVoucherID != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "provide either a voucher code or a claimed voucher, not both"))
			return
		}

		input := orders.CreateOrderInput{
			Holder: holder,
			Shipping: orders.ShippingDetails{
				Name:       body.Shipping.Name,
				Phone:      body.Shipping.Phone,
				Address1:   body.Shipping.Address1,
				Address2:   body.Shipping.Address2,
				City:       body.Shipping.City,
				Province:   body.Shipping.Province,
				PostalCode: body.Shipping.PostalCode,
				Email:      body.Shipping.Email,
			},
			PaymentMethod: enums.PaymentMethod(body.PaymentMethod),
			ShippingCost:  body.ShippingCost,
		}
		if body.VoucherCode != nil {
			input.Voucher = &orders.VoucherRef{Code: body.VoucherCode}
		}
		if body.UserVoucherID != nil {
			parsed, err := uuid.Parse(*body.UserVoucherID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user_voucher_id must be a valid uuid"))
				return
			}
			input.Voucher = &orders.VoucherRef{UserVoucherID: &parsed}
		}

		result, err := svc.CreateOrder(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithOrderID(ctx, result.OrderID.String()), "order created")
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"order_id":       result.OrderID,
			"order_number":   result.OrderNumber,
			"status":         result.Status,
			"total_amount":   result.TotalAmount,
			"transaction_id": result.TransactionID,
		})
	}
}

// OrderDetail returns one order with its item snapshots.
func OrderDetail(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id must be a valid uuid"))
			return
		}

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := make([]map[string]any, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, map[string]any{
				"product_id":   item.ProductID,
				"variant_id":   item.VariantID,
				"product_name": item.ProductName,
				"variant_name": item.VariantName,
				"quantity":     item.Quantity,
				"unit_price":   item.UnitPrice,
			})
		}

		responses.WriteSuccess(w, map[string]any{
			"order_id":        order.ID,
			"order_number":    order.OrderNumber,
			"status":          order.Status,
			"payment_method":  order.PaymentMethod,
			"subtotal":        order.Subtotal,
			"discount_amount": order.DiscountAmount,
			"shipping_cost":   order.ShippingCost,
			"total_amount":    order.TotalAmount,
			"voucher_code":    order.VoucherCode,
			"order_date":      order.OrderDate,
			"items":           items,
		})
	}
}

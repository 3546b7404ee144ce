package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adisaputra/tokoku-backend/internal/stock"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
)

// ShippingDetails carries the destination fields captured at checkout.
type ShippingDetails struct {
	Name       string
	Phone      string
	Address1   string
	Address2   *string
	City       string
	Province   string
	PostalCode string
	Email      string
}

// VoucherRef points at the voucher the shopper wants applied: either a raw
// code or one of their claimed instances.
type VoucherRef struct {
	Code          *string
	UserVoucherID *uuid.UUID
}

// CreateOrderInput is everything needed to convert a hold-set into an order.
type CreateOrderInput struct {
	Holder        stock.Holder
	Shipping      ShippingDetails
	PaymentMethod enums.PaymentMethod
	Voucher       *VoucherRef
	ShippingCost  decimal.Decimal
}

// CreateOrderResult reports the durable order produced by a checkout.
type CreateOrderResult struct {
	OrderID     uuid.UUID
	OrderNumber string
	Status      enums.OrderStatus
	TotalAmount decimal.Decimal
	// TransactionID is set only for deferred-payment orders; the payment
	// gateway echoes it back on its webhook.
	TransactionID *string
}

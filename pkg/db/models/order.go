package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adisaputra/tokoku-backend/pkg/enums"
)

// Order is the durable record produced by a successful checkout. Status is the
// only field this service mutates after creation.
type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber          string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID               *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	ShippingName         string              `gorm:"column:shipping_name;not null"`
	ShippingPhone        string              `gorm:"column:shipping_phone;not null"`
	ShippingAddress1     string              `gorm:"column:shipping_address1;not null"`
	ShippingAddress2     *string             `gorm:"column:shipping_address2"`
	ShippingCity         string              `gorm:"column:shipping_city;not null"`
	ShippingProvince     string              `gorm:"column:shipping_province;not null"`
	ShippingPostalCode   string              `gorm:"column:shipping_postal_code;not null"`
	Email                string              `gorm:"column:email;not null"`
	Subtotal             decimal.Decimal     `gorm:"column:subtotal;type:numeric(14,2);not null"`
	DiscountAmount       decimal.Decimal     `gorm:"column:discount_amount;type:numeric(14,2);not null;default:0"`
	ShippingCost         decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(14,2);not null;default:0"`
	TotalAmount          decimal.Decimal     `gorm:"column:total_amount;type:numeric(14,2);not null"`
	VoucherCode          *string             `gorm:"column:voucher_code"`
	Status               enums.OrderStatus   `gorm:"column:status;not null"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentTransactionID *string             `gorm:"column:payment_transaction_id;uniqueIndex"`
	OrderDate            time.Time           `gorm:"column:order_date;not null"`
	Items                []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory        []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderStatusHistory appends one row per status transition.
type OrderStatusHistory struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;not null"`
	Note      *string           `gorm:"column:note"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

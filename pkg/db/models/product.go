package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the storefront listing. For variant-bearing products the Stock
// column is a denormalized sum over variants, recomputed after any variant
// stock change.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name          string           `gorm:"column:name;not null"`
	Description   *string          `gorm:"column:description"`
	Price         decimal.Decimal  `gorm:"column:price;type:numeric(14,2);not null"`
	DiscountPrice *decimal.Decimal `gorm:"column:discount_price;type:numeric(14,2)"`
	Stock         int              `gorm:"column:stock;not null;default:0"`
	IsActive      bool             `gorm:"column:is_active;not null"`
	Variants      []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice returns the discount price when set and positive, otherwise
// the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice != nil && p.DiscountPrice.IsPositive() {
		return *p.DiscountPrice
	}
	return p.Price
}

// ProductVariant is a size/option row carrying its own stock counter.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

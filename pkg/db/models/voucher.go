package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adisaputra/tokoku-backend/pkg/enums"
)

// Voucher is a promotional discount. Code is stored uppercase; lookups
// normalize the caller's input. UseCount is mutated only via atomic increment.
type Voucher struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Code              string            `gorm:"column:code;not null;uniqueIndex"`
	Type              enums.VoucherType `gorm:"column:type;not null"`
	Value             decimal.Decimal   `gorm:"column:value;type:numeric(14,2);not null"`
	MinPurchaseAmount decimal.Decimal   `gorm:"column:min_purchase_amount;type:numeric(14,2);not null;default:0"`
	MaxUses           *int              `gorm:"column:max_uses"`
	UseCount          int               `gorm:"column:use_count;not null;default:0"`
	StartDate         *time.Time        `gorm:"column:start_date"`
	EndDate           *time.Time        `gorm:"column:end_date"`
	IsActive          bool              `gorm:"column:is_active;not null"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

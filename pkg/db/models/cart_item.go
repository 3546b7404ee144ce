package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem belongs to a logged-in shopper. Cleared inside the order-creation
// transaction once the order commits.
type CartItem struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity  int        `gorm:"column:quantity;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

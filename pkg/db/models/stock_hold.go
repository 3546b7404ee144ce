package models

import (
	"time"

	"github.com/google/uuid"
)

// StockHold is a time-bounded claim on a stock unit made during checkout
// preparation. Exactly one of UserID/SessionID is set.
type StockHold struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	SessionID *string    `gorm:"column:session_id;index"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity  int        `gorm:"column:quantity;not null"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

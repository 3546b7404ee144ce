package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adisaputra/tokoku-backend/pkg/enums"
)

// UserVoucher is a voucher instance claimed by one user, redeemable at most
// once. Redemption is guarded by status='available' in the update predicate so
// two concurrent attempts cannot both succeed.
type UserVoucher struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	VoucherID uuid.UUID               `gorm:"column:voucher_id;type:uuid;not null"`
	Status    enums.UserVoucherStatus `gorm:"column:status;not null;default:'available'"`
	UsedAt    *time.Time              `gorm:"column:used_at"`
	Voucher   *Voucher                `gorm:"foreignKey:VoucherID"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
}

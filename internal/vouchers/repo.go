package vouchers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

// Repository resolves and consumes vouchers. Both resolution entry points
// (raw code, claimed user voucher) funnel into the same Evaluate call.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByCode(ctx context.Context, code string) (*models.Voucher, error)
	FindAvailableUserVoucher(ctx context.Context, userVoucherID, userID uuid.UUID) (*models.UserVoucher, error)
	IncrementUseCount(ctx context.Context, voucherID uuid.UUID) error
	RedeemUserVoucher(ctx context.Context, userVoucherID uuid.UUID, now time.Time) error
	HasAvailableUserVoucher(ctx context.Context, userID, voucherID uuid.UUID) (bool, error)
	GrantUserVoucher(ctx context.Context, userID, voucherID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a voucher repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindActiveByCode resolves a voucher by its case-insensitive code. Inactive
// codes are indistinguishable from missing ones on purpose.
func (r *repository) FindActiveByCode(ctx context.Context, code string) (*models.Voucher, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code required")
	}
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ? AND is_active = ?", normalized, true).
		First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher "+normalized+" not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load voucher")
	}
	return &voucher, nil
}

func (r *repository) FindAvailableUserVoucher(ctx context.Context, userVoucherID, userID uuid.UUID) (*models.UserVoucher, error) {
	var claimed models.UserVoucher
	err := r.db.WithContext(ctx).
		Preload("Voucher").
		Where("id = ? AND user_id = ?", userVoucherID, userID).
		First(&claimed).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user voucher")
	}
	if claimed.Status != enums.UserVoucherStatusAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher has already been used")
	}
	if claimed.Voucher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	}
	return &claimed, nil
}

// IncrementUseCount bumps the global redemption counter. The max_uses guard
// lives in the predicate so two orders racing for the last redemption cannot
// both succeed.
func (r *repository) IncrementUseCount(ctx context.Context, voucherID uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE vouchers
		SET use_count = use_count + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (max_uses IS NULL OR use_count < max_uses)
	`, voucherID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment voucher use count")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher has been fully redeemed")
	}
	return nil
}

// RedeemUserVoucher flips the claimed instance to used exactly once. Zero rows
// affected means another transaction redeemed it first.
func (r *repository) RedeemUserVoucher(ctx context.Context, userVoucherID uuid.UUID, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.UserVoucher{}).
		Where("id = ? AND status = ?", userVoucherID, enums.UserVoucherStatusAvailable).
		Updates(map[string]any{
			"status":  enums.UserVoucherStatusUsed,
			"used_at": now,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "redeem user voucher")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "voucher was redeemed by another checkout")
	}
	return nil
}

func (r *repository) HasAvailableUserVoucher(ctx context.Context, userID, voucherID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserVoucher{}).
		Where("user_id = ? AND voucher_id = ? AND status = ?", userID, voucherID, enums.UserVoucherStatusAvailable).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count user vouchers")
	}
	return count > 0, nil
}

func (r *repository) GrantUserVoucher(ctx context.Context, userID, voucherID uuid.UUID) error {
	claimed := models.UserVoucher{
		UserID:    userID,
		VoucherID: voucherID,
		Status:    enums.UserVoucherStatusAvailable,
	}
	if err := r.db.WithContext(ctx).Create(&claimed).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant user voucher")
	}
	return nil
}

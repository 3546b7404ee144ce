package vouchers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:vouchers_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Voucher{}, &models.UserVoucher{}))
	return db
}

func TestFindActiveByCodeCaseInsensitive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	require.NoError(t, db.Create(&models.Voucher{
		Code:     "TENOFF",
		Type:     enums.VoucherTypePercentage,
		Value:    decimal.NewFromInt(10),
		IsActive: true,
	}).Error)

	voucher, err := repo.FindActiveByCode(ctx, "  tenoff ")
	require.NoError(t, err)
	assert.Equal(t, "TENOFF", voucher.Code)
}

func TestFindActiveByCodeHidesInactive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	require.NoError(t, db.Create(&models.Voucher{
		Code:     "RETIRED",
		Type:     enums.VoucherTypeFixedAmount,
		Value:    decimal.NewFromInt(5000),
		IsActive: false,
	}).Error)

	_, err := repo.FindActiveByCode(ctx, "RETIRED")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = repo.FindActiveByCode(ctx, "NEVEREXISTED")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestIncrementUseCountRespectsMaxUses(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	maxUses := 1
	voucher := models.Voucher{
		Code:     "LASTONE",
		Type:     enums.VoucherTypeFixedAmount,
		Value:    decimal.NewFromInt(5000),
		MaxUses:  &maxUses,
		IsActive: true,
	}
	require.NoError(t, db.Create(&voucher).Error)

	require.NoError(t, repo.IncrementUseCount(ctx, voucher.ID))

	err := repo.IncrementUseCount(ctx, voucher.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	var persisted models.Voucher
	require.NoError(t, db.First(&persisted, "id = ?", voucher.ID).Error)
	assert.Equal(t, 1, persisted.UseCount)
}

func TestIncrementUseCountUnlimited(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	voucher := models.Voucher{
		Code:     "FOREVER",
		Type:     enums.VoucherTypePercentage,
		Value:    decimal.NewFromInt(5),
		IsActive: true,
	}
	require.NoError(t, db.Create(&voucher).Error)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementUseCount(ctx, voucher.ID))
	}

	var persisted models.Voucher
	require.NoError(t, db.First(&persisted, "id = ?", voucher.ID).Error)
	assert.Equal(t, 3, persisted.UseCount)
}

func TestRedeemUserVoucherExactlyOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	now := time.Now().UTC()

	voucher := models.Voucher{
		Code:     "CLAIMED",
		Type:     enums.VoucherTypeFixedAmount,
		Value:    decimal.NewFromInt(10000),
		IsActive: true,
	}
	require.NoError(t, db.Create(&voucher).Error)

	userID := uuid.New()
	claimed := models.UserVoucher{
		UserID:    userID,
		VoucherID: voucher.ID,
		Status:    enums.UserVoucherStatusAvailable,
	}
	require.NoError(t, db.Create(&claimed).Error)

	require.NoError(t, repo.RedeemUserVoucher(ctx, claimed.ID, now))

	err := repo.RedeemUserVoucher(ctx, claimed.ID, now)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	_, err = repo.FindAvailableUserVoucher(ctx, claimed.ID, userID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGrantAndLookupUserVoucher(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	voucher := models.Voucher{
		Code:     "REWARD",
		Type:     enums.VoucherTypeFixedAmount,
		Value:    decimal.NewFromInt(25000),
		IsActive: true,
	}
	require.NoError(t, db.Create(&voucher).Error)

	userID := uuid.New()
	has, err := repo.HasAvailableUserVoucher(ctx, userID, voucher.ID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, repo.GrantUserVoucher(ctx, userID, voucher.ID))

	has, err = repo.HasAvailableUserVoucher(ctx, userID, voucher.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

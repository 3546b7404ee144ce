package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:models_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	return db
}

// Every model must migrate on sqlite; the tag set cannot carry Postgres-only
// expressions. The SQL migrations own the database-side defaults.
func TestModelsMigrateOnSQLite(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(
		&Product{},
		&ProductVariant{},
		&StockHold{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&Voucher{},
		&UserVoucher{},
		&CartItem{},
	))
}

func TestBeforeCreateAssignsAndKeepsIDs(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&Product{}))

	generated := Product{Name: "Teh Melati", Price: decimal.NewFromInt(15000), IsActive: true}
	require.NoError(t, db.Create(&generated).Error)
	assert.NotEqual(t, uuid.Nil, generated.ID)

	preset := Product{ID: uuid.New(), Name: "Teh Hijau", Price: decimal.NewFromInt(17000), IsActive: true}
	want := preset.ID
	require.NoError(t, db.Create(&preset).Error)
	assert.Equal(t, want, preset.ID)
}

// A false flag must round-trip through Create; the insert cannot silently
// fall back to a column default.
func TestInactiveFlagPersistsThroughCreate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(&Product{}, &Voucher{}))

	product := Product{Name: "Arsip", Price: decimal.NewFromInt(1000), IsActive: false}
	require.NoError(t, db.Create(&product).Error)
	var gotProduct Product
	require.NoError(t, db.First(&gotProduct, "id = ?", product.ID).Error)
	assert.False(t, gotProduct.IsActive)

	voucher := Voucher{Code: "NONAKTIF", Type: enums.VoucherTypePercentage, Value: decimal.NewFromInt(10), IsActive: false}
	require.NoError(t, db.Create(&voucher).Error)
	var gotVoucher Voucher
	require.NoError(t, db.First(&gotVoucher, "id = ?", voucher.ID).Error)
	assert.False(t, gotVoucher.IsActive)
}

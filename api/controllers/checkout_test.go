package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/internal/stock"
	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newCheckoutHandler(t *testing.T) (http.HandlerFunc, *gorm.DB) {
	t.Helper()

	dsn := "file:controllers_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.ProductVariant{}, &models.StockHold{}))

	manager, err := stock.NewHoldManager(gormTxRunner{db: db}, stock.DefaultHoldWindow)
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return CheckoutReserve(manager, logg), db
}

func TestCheckoutReserveRequiresIdentity(t *testing.T) {
	t.Parallel()

	handler, _ := newCheckoutHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/reservations", strings.NewReader(`{"items":[]}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCheckoutReserveRejectsDualIdentity(t *testing.T) {
	t.Parallel()

	handler, _ := newCheckoutHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/reservations", strings.NewReader(`{}`))
	req.Header.Set("X-User-Id", uuid.NewString())
	req.Header.Set("X-Session-Id", "sess-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckoutReserveValidatesBody(t *testing.T) {
	t.Parallel()

	handler, _ := newCheckoutHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/reservations",
		strings.NewReader(`{"items":[{"product_id":"not-a-uuid","quantity":1}]}`))
	req.Header.Set("X-Session-Id", "sess-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckoutReserveCreatesHolds(t *testing.T) {
	t.Parallel()

	handler, db := newCheckoutHandler(t)

	product := models.Product{Name: "Celana Chino", Price: decimal.NewFromInt(120000), Stock: 5, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	body := `{"items":[{"product_id":"` + product.ID.String() + `","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/reservations", strings.NewReader(body))
	req.Header.Set("X-Session-Id", "sess-ok")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var envelope struct {
		Data struct {
			ExpiresAt string `json:"expires_at"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.ExpiresAt)

	var holds int64
	require.NoError(t, db.Model(&models.StockHold{}).Count(&holds).Error)
	assert.Equal(t, int64(1), holds)
}

func TestCheckoutReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	handler, db := newCheckoutHandler(t)

	product := models.Product{Name: "Topi", Price: decimal.NewFromInt(30000), Stock: 1, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	body := `{"items":[{"product_id":"` + product.ID.String() + `","quantity":2}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/reservations", strings.NewReader(body))
	req.Header.Set("X-Session-Id", "sess-short")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.Equal(t, "OUT_OF_STOCK", envelope.Error.Code)
}

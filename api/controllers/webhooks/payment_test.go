package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/adisaputra/tokoku-backend/internal/orders"
	"github.com/adisaputra/tokoku-backend/internal/payments"
	"github.com/adisaputra/tokoku-backend/pkg/db/models"
	"github.com/adisaputra/tokoku-backend/pkg/enums"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestHandler(t *testing.T) (http.HandlerFunc, *gorm.DB) {
	t.Helper()

	dsn := "file:webhooks_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
	))

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	reconciler, err := payments.NewReconciler(gormTxRunner{db: db}, orders.NewRepository(db), logg)
	require.NoError(t, err)

	return PaymentWebhook(reconciler, logg), db
}

func postJSON(handler http.HandlerFunc, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestPaymentWebhookRejectsWrongContentType(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t)
	rr := postJSON(handler, "text/plain", `{"event":"payment_status_update","transaction_id":"TRX-x","status":"success"}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
}

func TestPaymentWebhookRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t)
	rr := postJSON(handler, "application/json", `{"transaction_id":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = postJSON(handler, "application/json", `{"event":"payment_status_update","status":"success"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPaymentWebhookUnknownTransactionIsOK(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t)
	rr := postJSON(handler, "application/json", `{"event":"payment_status_update","transaction_id":"TRX-unknown","status":"success"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var envelope struct {
		Data struct {
			Outcome string `json:"outcome"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	assert.Equal(t, "noop", envelope.Data.Outcome)
}

func TestPaymentWebhookIgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t)

	cases := []struct {
		name string
		body string
	}{
		{name: "failed status", body: `{"event":"payment_status_update","transaction_id":"TRX-x","status":"failed"}`},
		{name: "foreign event", body: `{"event":"refund_created","transaction_id":"TRX-x","status":"success"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(handler, "application/json", tc.body)
			require.Equal(t, http.StatusOK, rr.Code)

			var envelope struct {
				Data struct {
					Outcome string `json:"outcome"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
			assert.Equal(t, "ignored", envelope.Data.Outcome)
		})
	}
}

func TestPaymentWebhookAppliesSuccess(t *testing.T) {
	t.Parallel()

	handler, db := newTestHandler(t)

	product := models.Product{Name: "Payung Lipat", Price: decimal.NewFromInt(45000), Stock: 3, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	transactionID := "TRX-settle"
	order := models.Order{
		OrderNumber:          "TKO-20250614-AAAA1111",
		ShippingName:         "Dewi",
		ShippingPhone:        "+62811",
		ShippingAddress1:     "Jl. Mawar",
		ShippingCity:         "Medan",
		ShippingProvince:     "Sumatera Utara",
		ShippingPostalCode:   "20111",
		Email:                "dewi@example.com",
		Subtotal:             decimal.NewFromInt(45000),
		TotalAmount:          decimal.NewFromInt(45000),
		Status:               enums.OrderStatusAwaitingPayment,
		PaymentMethod:        enums.PaymentMethodEWallet,
		PaymentTransactionID: &transactionID,
		OrderDate:            time.Now().UTC(),
	}
	require.NoError(t, db.Create(&order).Error)
	require.NoError(t, db.Create(&models.OrderItem{
		OrderID:     order.ID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    1,
		UnitPrice:   product.Price,
	}).Error)

	rr := postJSON(handler, "application/json", `{"event":"payment_status_update","transaction_id":"TRX-settle","status":"success"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var settled models.Order
	require.NoError(t, db.First(&settled, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusProcessing, settled.Status)

	var persisted models.Product
	require.NoError(t, db.First(&persisted, "id = ?", product.ID).Error)
	assert.Equal(t, 2, persisted.Stock)
}

package webhooks

import (
	"mime"
	"net/http"

	"github.com/adisaputra/tokoku-backend/api/responses"
	"github.com/adisaputra/tokoku-backend/api/validators"
	"github.com/adisaputra/tokoku-backend/internal/payments"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

const eventPaymentStatusUpdate = "payment_status_update"

type paymentEventBody struct {
	Event         string `json:"event" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"required"`
	Status        string `json:"status" validate:"required"`
}

// PaymentWebhook ingests payment gateway notifications. Gateways retry until
// they see 2xx, so every recoverable outcome answers 200: success, repeat
// delivery, unknown transaction id, and the committed cancellation when stock
// sold out. Only rejected requests (bad key handled upstream, wrong media
// type, malformed body) and transient dependency failures are non-2xx.
func PaymentWebhook(reconciler *payments.Reconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeUnsupportedMedia, "payment webhooks must be application/json"))
			return
		}

		var body paymentEventBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Only the exact event/status pair mutates state. Everything else is
		// acknowledged so the gateway can grow new event types without
		// triggering retry storms here.
		if body.Event != eventPaymentStatusUpdate || body.Status != "success" {
			responses.WriteSuccess(w, map[string]any{"outcome": "ignored"})
			return
		}

		result, err := reconciler.ApplyPaymentSuccess(ctx, body.TransactionID)
		if err != nil {
			if pkgerrors.As(err).Code() == pkgerrors.CodeOutOfStock && result != nil {
				responses.WriteSuccess(w, map[string]any{
					"outcome":      result.Outcome,
					"order_id":     result.OrderID,
					"order_number": result.OrderNumber,
				})
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"outcome":      result.Outcome,
			"order_id":     result.OrderID,
			"order_number": result.OrderNumber,
		})
	}
}

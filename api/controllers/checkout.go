package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/adisaputra/tokoku-backend/api/responses"
	"github.com/adisaputra/tokoku-backend/api/validators"
	"github.com/adisaputra/tokoku-backend/internal/stock"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

type reserveItemBody struct {
	ProductID string  `json:"product_id" validate:"required,uuid4"`
	VariantID *string `json:"variant_id,omitempty" validate:"omitempty,uuid4"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
}

type reserveBody struct {
	Items []reserveItemBody `json:"items" validate:"required,min=1,dive"`
}

// CheckoutReserve replaces the shopper's hold-set with holds for the posted
// items. All-or-nothing; a single short item fails the whole request.
func CheckoutReserve(holds *stock.HoldManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		holder, err := holderFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body reserveBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		requests := make([]stock.HoldRequest, 0, len(body.Items))
		for _, item := range body.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product_id must be a valid uuid"))
				return
			}
			var variantID *uuid.UUID
			if item.VariantID != nil {
				parsed, err := uuid.Parse(*item.VariantID)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "variant_id must be a valid uuid"))
					return
				}
				variantID = &parsed
			}
			requests = append(requests, stock.HoldRequest{
				ProductID: productID,
				VariantID: variantID,
				Quantity:  item.Quantity,
			})
		}

		reservation, err := holds.Reserve(ctx, holder, requests)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"expires_at": reservation.ExpiresAt,
		})
	}
}

// CheckoutRelease drops the shopper's hold-set, returning the stock to the
// available pool immediately.
func CheckoutRelease(holds *stock.HoldManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		holder, err := holderFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := holds.Release(ctx, holder); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"released": true})
	}
}

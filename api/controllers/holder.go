package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/adisaputra/tokoku-backend/internal/stock"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
)

const (
	userIDHeader    = "X-User-Id"
	sessionIDHeader = "X-Session-Id"
)

// holderFromRequest resolves who owns the checkout: a logged-in user id or a
// guest session id, never both.
func holderFromRequest(r *http.Request) (stock.Holder, error) {
	userHeader := r.Header.Get(userIDHeader)
	sessionHeader := r.Header.Get(sessionIDHeader)

	if userHeader != "" && sessionHeader != "" {
		return stock.Holder{}, pkgerrors.New(pkgerrors.CodeValidation, "provide either a user id or a session id, not both")
	}
	if userHeader != "" {
		userID, err := uuid.Parse(userHeader)
		if err != nil {
			return stock.Holder{}, pkgerrors.New(pkgerrors.CodeValidation, "user id must be a valid uuid")
		}
		return stock.Holder{UserID: &userID}, nil
	}
	if sessionHeader != "" {
		return stock.Holder{SessionID: &sessionHeader}, nil
	}
	return stock.Holder{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "shopper identity required")
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/adisaputra/tokoku-backend/api/responses"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

const apiKeyHeader = "X-Api-Key"

// APIKey guards machine-to-machine endpoints (payment webhooks, the manual
// scheduler trigger) with a shared secret.
func APIKey(expected string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(apiKeyHeader)
			if expected == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid api key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package controllers

import (
	"net/http"

	"github.com/adisaputra/tokoku-backend/api/responses"
	"github.com/adisaputra/tokoku-backend/internal/cron"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

// SchedulerTrigger runs every registered maintenance job once, on demand.
// Guarded by the shared api key; used by ops and by tests against staging.
func SchedulerTrigger(svc *cron.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		counts, err := svc.RunOnce(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scheduler run failed"))
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "completed",
			"counts": counts,
		})
	}
}

package controllers

import (
	"context"
	"net/http"

	"github.com/adisaputra/tokoku-backend/api/responses"
	"github.com/adisaputra/tokoku-backend/pkg/config"
	pkgerrors "github.com/adisaputra/tokoku-backend/pkg/errors"
	"github.com/adisaputra/tokoku-backend/pkg/logger"
)

// Pinger is the health-check surface of a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tokoku-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger, redisPinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Tokoku-Env", cfg.App.Env)
		ctx := r.Context()

		if dbPinger != nil {
			if err := dbPinger.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if redisPinger != nil {
			if err := redisPinger.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

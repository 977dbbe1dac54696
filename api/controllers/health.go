package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/redis"
)

const readyTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cardapy-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the platform database and, when configured, Redis.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cardapy-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed *pkgerrors.Error
		if dbP != nil {
			checks["database"] = "ok"
			if err := dbP.Ping(ctx); err != nil {
				checks["database"] = "down"
				failed = pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "database unavailable")
			}
		}
		if redisP != nil {
			checks["redis"] = "ok"
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "down"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "redis unavailable")
				}
			}
		}
		if failed != nil {
			responses.WriteError(r.Context(), logg, w, failed)
			return
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}

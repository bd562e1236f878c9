package controllers

import (
	"context"
	"net/http"

	"github.com/tabletalk-ai/tabletalk-backend/api/responses"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/config"
	pkgerrors "github.com/tabletalk-ai/tabletalk-backend/pkg/errors"
	"github.com/tabletalk-ai/tabletalk-backend/pkg/logger"
)

type dependencyPinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TableTalk-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the API can reach its backing stores.
func HealthReady(cfg *config.Config, db dependencyPinger, cache dependencyPinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-TableTalk-Env", cfg.App.Env)

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

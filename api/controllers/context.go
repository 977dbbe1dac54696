package controllers

import (
	"net/http"

	"github.com/angelmondragon/cardapy-backend/api/middleware"
	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

func requireTenant(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*tenant.Context, bool) {
	tc, err := middleware.CurrentTenant(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return tc, true
}

func requireSession(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*tenant.Context, string, bool) {
	tc, ok := requireTenant(w, r, logg)
	if !ok {
		return nil, "", false
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
		return nil, "", false
	}
	return tc, sessionID, true
}

func unavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable"))
}

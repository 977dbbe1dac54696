package middleware

import (
	"net/http"
	"time"

	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/auth"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

// Session binds the anonymous cart session from its signed cookie. Missing,
// forged, expired or foreign cookies are replaced by a fresh session.
// Requires TenantContext upstream.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tc, ok := tenant.FromContext(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			subdomain := tc.Tenant.Subdomain

			sessionID := ""
			if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
				claims, err := auth.ParseSessionToken(cfg, subdomain, cookie.Value)
				if err != nil {
					logg.Debug(logg.WithField(ctx, "reason", err.Error()), "session cookie rejected")
				} else {
					sessionID = claims.SessionID()
				}
			}

			if sessionID == "" {
				sessionID = auth.NewSessionID()
				now := time.Now()
				token, err := auth.MintSessionToken(cfg, now, subdomain, sessionID)
				if err != nil {
					logg.Error(ctx, "mint session token", err)
				} else {
					http.SetCookie(w, &http.Cookie{
						Name:     cfg.CookieName,
						Value:    token,
						Path:     "/",
						Expires:  now.Add(cfg.TTL),
						HttpOnly: true,
						Secure:   cfg.Secure,
						SameSite: http.SameSiteLaxMode,
					})
				}
			}

			ctx = WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

// TenantQueryParam carries the tenant on platform-hosted callbacks.
const TenantQueryParam = "tenant"

type tenantBinder interface {
	Bind(ctx context.Context, subdomain string) (*tenant.Context, error)
}

// TenantContext resolves the subdomain from Host and binds the tenant before
// any handler runs. Requests without a tenant never reach the handler.
func TenantContext(binder tenantBinder, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subdomain, ok := tenant.ResolveSubdomain(r.Host)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found"))
				return
			}
			ctx, err := bindTenant(r.Context(), binder, logg, subdomain)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WebhookTenant binds the tenant named by the ?tenant= query value. A missing
// or unknown tenant is acknowledged so the gateway stops retrying; an
// unreachable shard is not, so the notification comes back later.
func WebhookTenant(binder tenantBinder, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subdomain := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(TenantQueryParam)))
			if subdomain == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInconsistentWebhook, "webhook without tenant"))
				return
			}
			ctx, err := bindTenant(r.Context(), binder, logg, subdomain)
			if err != nil {
				if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
					err = pkgerrors.Wrap(pkgerrors.CodeInconsistentWebhook, err, "webhook for unknown tenant")
				}
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bindTenant(ctx context.Context, binder tenantBinder, logg *logger.Logger, subdomain string) (context.Context, error) {
	tc, err := binder.Bind(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	ctx = logg.WithTenant(ctx, tc.ID().String(), tc.Tenant.Subdomain)
	ctx = logg.WithField(ctx, "shard_id", tc.Tenant.ShardID)
	return tenant.WithContext(ctx, tc), nil
}

// CurrentTenant returns the binding or an error for handlers mounted outside
// the tenant middleware.
func CurrentTenant(ctx context.Context) (*tenant.Context, error) {
	tc, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tenant context missing")
	}
	return tc, nil
}

package tenant

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
)

type contextKey string

const tenantContextKey contextKey = "tenant_context"

// Context is the request-scoped binding of one tenant. It is read-only once built.
type Context struct {
	Tenant models.Tenant
	Target Target
	DB     *gorm.DB
}

// ID returns the bound tenant id.
func (c *Context) ID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.Tenant.ID
}

// WithContext stores tc on ctx.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, tenantContextKey, tc)
}

// FromContext returns the binding established for the current request.
func FromContext(ctx context.Context) (*Context, bool) {
	if ctx == nil {
		return nil, false
	}
	tc, ok := ctx.Value(tenantContextKey).(*Context)
	return tc, ok && tc != nil
}

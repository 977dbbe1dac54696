package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the foundation of every shard repository. It pins the tenant id so
// each query it builds carries the tenant filter.
type Base struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

// NewBase constructs a Base bound to a shard connection and one tenant.
func NewBase(db *gorm.DB, tenantID uuid.UUID) Base {
	return Base{db: db, tenantID: tenantID}
}

// TenantID is the tenant every query is scoped to.
func (b Base) TenantID() uuid.UUID {
	return b.tenantID
}

// WithTx rebinds the base to a transaction on the same shard.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx, tenantID: b.tenantID}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Scoped returns a query on table already filtered by tenant_id.
func (b Base) Scoped(ctx context.Context, table string) *gorm.DB {
	return b.DB(ctx).Table(table).Where(table+".tenant_id = ?", b.tenantID)
}

// Model returns a model query already filtered by tenant_id.
func (b Base) Model(ctx context.Context, model any, table string) *gorm.DB {
	return b.DB(ctx).Model(model).Where(table+".tenant_id = ?", b.tenantID)
}

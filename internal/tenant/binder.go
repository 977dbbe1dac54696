package tenant

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
)

// ShardSource hands out a reachable connection for a physical tenant database.
type ShardSource interface {
	Get(ctx context.Context, database string) (*gorm.DB, error)
}

// BinderParams wires the binder.
type BinderParams struct {
	Directory   Directory
	Shards      ShardSource
	Provisioner db.Provisioner
	Tenancy     config.TenancyConfig
	Storage     config.StorageConfig
	// AllowProvision enables create-on-demand for unreachable shards. Never set in production.
	AllowProvision bool
	Metrics        *metrics.Platform
	Logger         *logger.Logger
}

// Binder turns a resolved subdomain into a request-scoped tenant Context.
type Binder struct {
	directory      Directory
	shards         ShardSource
	provisioner    db.Provisioner
	tenancy        config.TenancyConfig
	storage        config.StorageConfig
	allowProvision bool
	metrics        *metrics.Platform
	logg           *logger.Logger
	provisioning   singleflight.Group
}

// NewBinder validates the params and builds a Binder.
func NewBinder(p BinderParams) (*Binder, error) {
	if p.Directory == nil {
		return nil, fmt.Errorf("tenant directory required")
	}
	if p.Shards == nil {
		return nil, fmt.Errorf("shard source required")
	}
	if p.AllowProvision && p.Provisioner == nil {
		return nil, fmt.Errorf("provisioner required when provisioning is allowed")
	}
	return &Binder{
		directory:      p.Directory,
		shards:         p.Shards,
		provisioner:    p.Provisioner,
		tenancy:        p.Tenancy,
		storage:        p.Storage,
		allowProvision: p.AllowProvision,
		metrics:        p.Metrics,
		logg:           p.Logger,
	}, nil
}

// Bind looks up the tenant and acquires its shard. Every failure is fatal for the request.
func (b *Binder) Bind(ctx context.Context, subdomain string) (*Context, error) {
	started := time.Now()

	t, err := b.directory.FindActiveBySubdomain(ctx, subdomain)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			b.metrics.ObserveBinding(metrics.BindNotFound, time.Since(started))
		}
		return nil, err
	}

	target, err := TargetFor(b.tenancy, b.storage, *t)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "derive tenant target")
	}

	outcome := metrics.BindOK
	conn, err := b.connect(ctx, target.Database)
	if err != nil {
		if !b.allowProvision {
			b.metrics.ObserveBinding(metrics.BindUnavailable, time.Since(started))
			b.logg.Error(ctx, "tenant database unreachable", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "tenant database unavailable")
		}
		conn, err = b.provisionAndRetry(ctx, target.Database)
		if err != nil {
			b.metrics.ObserveBinding(metrics.BindUnavailable, time.Since(started))
			b.logg.Error(ctx, "tenant database provisioning failed", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "tenant database unavailable")
		}
		outcome = metrics.BindProvisioned
	}

	b.metrics.ObserveBinding(outcome, time.Since(started))
	return &Context{
		Tenant: *t,
		Target: target,
		DB:     conn,
	}, nil
}

func (b *Binder) connect(ctx context.Context, database string) (*gorm.DB, error) {
	if b.tenancy.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.tenancy.ConnectTimeout)
		defer cancel()
	}
	return b.shards.Get(ctx, database)
}

// provisionAndRetry creates the database once per name across concurrent
// requests, then retries the connection exactly once.
func (b *Binder) provisionAndRetry(ctx context.Context, database string) (*gorm.DB, error) {
	_, err, _ := b.provisioning.Do(database, func() (any, error) {
		pctx := context.WithoutCancel(ctx)
		if b.tenancy.ProvisionTimeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(pctx, b.tenancy.ProvisionTimeout)
			defer cancel()
		}
		b.logg.Warn(b.logg.WithField(pctx, "database", database), "provisioning tenant database")
		return nil, b.provisioner.EnsureDatabase(pctx, database)
	})
	if err != nil {
		return nil, err
	}
	return b.connect(ctx, database)
}

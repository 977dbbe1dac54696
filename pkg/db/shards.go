package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/config"
)

const defaultShardOpenTimeout = 30 * time.Second

// Opener returns an unpinged handle for the named physical database.
type Opener func(database string) (*gorm.DB, error)

// Initializer runs once against a freshly opened shard before it is shared.
type Initializer func(ctx context.Context, database string, conn *gorm.DB) error

// ShardPool caches one connection pool per tenant database. Handles are never
// reconfigured after they are published, so concurrent requests only read them.
type ShardPool struct {
	mu          sync.RWMutex
	conns       map[string]*gorm.DB
	open        Opener
	init        Initializer
	openTimeout time.Duration
	group       singleflight.Group
}

// NewShardPool builds a pool around the given opener.
func NewShardPool(open Opener) (*ShardPool, error) {
	if open == nil {
		return nil, fmt.Errorf("shard opener required")
	}
	return &ShardPool{
		conns:       make(map[string]*gorm.DB),
		open:        open,
		openTimeout: defaultShardOpenTimeout,
	}, nil
}

// SetInitializer registers a hook run on first open (dev auto-migration).
func (p *ShardPool) SetInitializer(init Initializer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.init = init
}

// SetOpenTimeout bounds the first open of a shard, initializer included.
func (p *ShardPool) SetOpenTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openTimeout = d
}

// Get returns a reachable handle for database, opening and pinging it on first use.
// A failed ping is returned to the caller and nothing is cached. The first open
// is detached from ctx so one caller leaving does not fail the others; a caller
// whose ctx ends stops waiting and gets ctx.Err().
func (p *ShardPool) Get(ctx context.Context, database string) (*gorm.DB, error) {
	if database == "" {
		return nil, fmt.Errorf("database name required")
	}
	p.mu.RLock()
	conn, ok := p.conns[database]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	ch := p.group.DoChan(database, func() (any, error) {
		p.mu.RLock()
		existing, ok := p.conns[database]
		init := p.init
		timeout := p.openTimeout
		p.mu.RUnlock()
		if ok {
			return existing, nil
		}

		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		opened, err := p.open(database)
		if err != nil {
			return nil, fmt.Errorf("open shard %s: %w", database, err)
		}
		if err := PingGorm(octx, opened); err != nil {
			closeGorm(opened)
			return nil, fmt.Errorf("ping shard %s: %w", database, err)
		}
		if init != nil {
			if err := init(octx, database, opened); err != nil {
				closeGorm(opened)
				return nil, fmt.Errorf("initialize shard %s: %w", database, err)
			}
		}

		p.mu.Lock()
		p.conns[database] = opened
		p.mu.Unlock()
		return opened, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*gorm.DB), nil
	}
}

// Len reports how many shards are open.
func (p *ShardPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Close releases every cached pool.
func (p *ShardPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	for name, conn := range p.conns {
		sqlDB, dbErr := conn.DB()
		if dbErr != nil {
			err = multierr.Append(err, fmt.Errorf("shard %s: %w", name, dbErr))
			continue
		}
		if closeErr := sqlDB.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("shard %s: %w", name, closeErr))
		}
	}
	p.conns = make(map[string]*gorm.DB)
	return err
}

func closeGorm(conn *gorm.DB) {
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// ServerOpener opens tenant databases on the same server as the platform database.
func ServerOpener(cfg config.DBConfig, tenancy config.TenancyConfig) Opener {
	pool := PoolSettings{
		MaxOpenConns:    tenancy.ShardMaxOpen,
		MaxIdleConns:    tenancy.ShardMaxIdle,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	return func(database string) (*gorm.DB, error) {
		dsn, err := cfg.WithDatabase(database)
		if err != nil {
			return nil, err
		}
		return Open(DriverPostgres, dsn, pool)
	}
}

// SQLiteOpener stores each tenant database as a file under dir, for local runs.
func SQLiteOpener(dir string) Opener {
	return func(database string) (*gorm.DB, error) {
		path := filepath.Join(dir, database+".db")
		return Open(DriverSQLite, "file:"+path+"?_foreign_keys=on", PoolSettings{MaxOpenConns: 1})
	}
}

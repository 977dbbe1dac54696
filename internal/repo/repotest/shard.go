// Package repotest opens migrated sqlite shards for repository tests.
package repotest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/migrate"
)

// NewShard returns an in-memory database shaped like a tenant shard. Each test gets its own.
func NewShard(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, migrate.SetTenant)
}

// NewPlatform returns an in-memory database holding the tenants table.
func NewPlatform(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, migrate.SetPlatform)
}

func open(t *testing.T, set migrate.Set) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", name, set)
	conn, err := db.Open(db.DriverSQLite, dsn, db.PoolSettings{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate.Apply(context.Background(), db.DriverSQLite, conn, set); err != nil {
		t.Fatalf("migrate %s: %v", set, err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

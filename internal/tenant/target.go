package tenant

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	pkgredis "github.com/angelmondragon/cardapy-backend/pkg/redis"
	"github.com/angelmondragon/cardapy-backend/pkg/storage"
)

const shardInfix = "_tenant_"

// Target is everything a request needs to reach one tenant's isolated resources.
// It is computed fresh per request and never mutated afterwards.
type Target struct {
	Database       string
	CacheNamespace pkgredis.Namespace
	Storage        storage.Root
}

// DatabaseName applies the shard naming rule: base + "_tenant_" + shard id.
func DatabaseName(base string, shardID int) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("tenant database base name required")
	}
	if shardID <= 0 {
		return "", fmt.Errorf("invalid shard id %d", shardID)
	}
	name := fmt.Sprintf("%s%s%d", base, shardInfix, shardID)
	if err := db.ValidateDatabaseName(name); err != nil {
		return "", err
	}
	return name, nil
}

// TargetFor derives the connection target of t.
func TargetFor(tenancy config.TenancyConfig, storageCfg config.StorageConfig, t models.Tenant) (Target, error) {
	database, err := DatabaseName(tenancy.DatabaseBase, t.ShardID)
	if err != nil {
		return Target{}, err
	}
	root, err := storage.TenantRoot(storageCfg, t.ID.String())
	if err != nil {
		return Target{}, err
	}
	return Target{
		Database:       database,
		CacheNamespace: pkgredis.TenantNamespace(t.ID.String()),
		Storage:        root,
	}, nil
}

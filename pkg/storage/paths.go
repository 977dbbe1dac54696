package storage

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/cardapy-backend/pkg/config"
)

const tenantsDir = "tenants"

// Root is one tenant's slice of the asset store: a directory on disk and the
// public URL prefix that serves it.
type Root struct {
	Dir       string
	URLPrefix string
}

// TenantRoot derives the storage root of a tenant. Distinct tenant ids never share a root.
func TenantRoot(cfg config.StorageConfig, tenantID string) (Root, error) {
	id := strings.TrimSpace(tenantID)
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return Root{}, fmt.Errorf("invalid tenant id %q", tenantID)
	}
	base := strings.TrimRight(cfg.PublicURLBase, "/")
	return Root{
		Dir:       filepath.Join(cfg.BaseDir, tenantsDir, id),
		URLPrefix: base + "/" + tenantsDir + "/" + url.PathEscape(id),
	}, nil
}

// Resolve maps a relative asset path onto disk, rejecting paths that escape the root.
func (r Root) Resolve(rel string) (string, error) {
	clean, err := cleanRelative(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.Dir, filepath.FromSlash(clean)), nil
}

// URL returns the public URL of a stored asset, or "" when rel is empty.
func (r Root) URL(rel string) string {
	clean, err := cleanRelative(rel)
	if err != nil || clean == "" {
		return ""
	}
	return r.URLPrefix + "/" + clean
}

// URLPtr is URL for optional columns.
func (r Root) URLPtr(rel *string) string {
	if rel == nil {
		return ""
	}
	return r.URL(*rel)
}

func cleanRelative(rel string) (string, error) {
	rel = strings.TrimSpace(strings.ReplaceAll(rel, `\`, "/"))
	if rel == "" {
		return "", nil
	}
	clean := path.Clean("/" + rel)[1:]
	if clean == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, "..") {
		return "", fmt.Errorf("invalid asset path %q", rel)
	}
	return clean, nil
}

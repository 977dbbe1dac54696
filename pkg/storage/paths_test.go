package storage

import (
	"path/filepath"
	"testing"

	"github.com/angelmondragon/cardapy-backend/pkg/config"
)

var cfg = config.StorageConfig{BaseDir: "/srv/assets", PublicURLBase: "/storage/"}

func TestTenantRootsAreDisjoint(t *testing.T) {
	a, err := TenantRoot(cfg, "t-1")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	b, _ := TenantRoot(cfg, "t-2")
	if a.Dir == b.Dir || a.URLPrefix == b.URLPrefix {
		t.Fatalf("tenants must not share a root")
	}
	if a.Dir != filepath.Join("/srv/assets", "tenants", "t-1") {
		t.Fatalf("unexpected dir %s", a.Dir)
	}
	if got := a.URL("menu/burger.jpg"); got != "/storage/tenants/t-1/menu/burger.jpg" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestTenantRootRejectsUnsafeIDs(t *testing.T) {
	for _, id := range []string{"", "../x", "a/b", "."} {
		if _, err := TenantRoot(cfg, id); err == nil {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	root, _ := TenantRoot(cfg, "t-1")
	for _, rel := range []string{"../t-2/logo.png", "/etc/passwd", "a/../../b"} {
		if _, err := root.Resolve(rel); err == nil {
			t.Fatalf("expected %q to be rejected", rel)
		}
		if root.URL(rel) != "" {
			t.Fatalf("unsafe path %q must not produce a url", rel)
		}
	}
	got, err := root.Resolve("logos/a.png")
	if err != nil || got != filepath.Join(root.Dir, "logos", "a.png") {
		t.Fatalf("unexpected resolve %s %v", got, err)
	}
	if root.URLPtr(nil) != "" {
		t.Fatalf("nil path has no url")
	}
}

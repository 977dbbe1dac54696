package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/db"
)

func TestEmbeddedSetsAreValid(t *testing.T) {
	for _, set := range []Set{SetPlatform, SetTenant} {
		if err := ValidateSet(set); err != nil {
			t.Fatalf("validate %s: %v", set, err)
		}
	}
}

func TestPlatformSetCreatesTenants(t *testing.T) {
	content := readSet(t, SetPlatform)
	if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS tenants") {
		t.Fatalf("platform set must create tenants")
	}
	if !strings.Contains(content, "idx_tenants_subdomain") {
		t.Fatalf("subdomain must be unique")
	}
	if strings.Contains(content, "CREATE TABLE IF NOT EXISTS orders") {
		t.Fatalf("orders belong to tenant shards")
	}
}

func TestTenantSetScopesEveryTable(t *testing.T) {
	content := readSet(t, SetTenant)
	for _, table := range []string{"categories", "menu_items", "orders", "order_items", "payments", "reviews"} {
		if !strings.Contains(content, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("tenant set missing %s", table)
		}
	}
	if got := strings.Count(content, "tenant_id uuid NOT NULL"); got != 6 {
		t.Fatalf("expected tenant_id on 6 tables, got %d", got)
	}
	if !strings.Contains(content, "total = subtotal + delivery_fee - discount") {
		t.Fatalf("orders must check the total breakdown")
	}
	if !strings.Contains(content, "rating BETWEEN 1 AND 5") {
		t.Fatalf("reviews must bound rating")
	}
}

func TestParseSet(t *testing.T) {
	if _, err := ParseSet("tenant"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseSet("billing"); err == nil {
		t.Fatalf("expected unknown set error")
	}
}

func TestValidateFSRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateFS(os.DirFS(dir)); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	root := t.TempDir()
	path, err := CreateSQLMigration(root, SetTenant, "Add Item Extras")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, "tenant") {
		t.Fatalf("expected file under tenant dir, got %s", path)
	}
	if !strings.HasSuffix(path, "_add_item_extras.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := ValidateFS(os.DirFS(filepath.Dir(path))); err != nil {
		t.Fatalf("created migration invalid: %v", err)
	}
}

func TestCreateSQLMigrationStaysMonotonic(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	first, err := createSQLMigration(root, SetPlatform, "add tenant plan", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := createSQLMigration(root, SetPlatform, "add tenant logo", now)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if filepath.Base(second) <= filepath.Base(first) {
		t.Fatalf("expected %s to sort after %s", second, first)
	}
	if !strings.HasPrefix(filepath.Base(second), "20250110130001_") {
		t.Fatalf("expected version bumped one second past the newest, got %s", second)
	}

	if _, err := createSQLMigration(root, SetPlatform, "Add Tenant Plan", now.Add(2*time.Hour)); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
	body, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(body), "tenant_id") {
		t.Fatalf("platform scaffold should not carry the tenant hint")
	}
}

func TestApplySQLiteShapesTenantShard(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Apply(context.Background(), db.DriverSQLite, conn, SetTenant); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for _, table := range []string{"categories", "menu_items", "orders", "order_items", "payments", "reviews"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
	if conn.Migrator().HasTable("tenants") {
		t.Fatalf("tenants must stay on the platform database")
	}
}

func readSet(t *testing.T, set Set) string {
	t.Helper()
	fsys, err := FS(set)
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	var b strings.Builder
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		b.Write(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return b.String()
}

package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

const versionLayout = "20060102150405"

// Tenant shards hold one restaurant each but rows still carry tenant_id, so
// the scaffold reminds the author to scope and index by it.
const tenantTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- Tables on tenant shards carry tenant_id UUID NOT NULL with an index leading on it.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

const platformTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration scaffolds <root>/<set>/<version>_<name>.sql. The version is
// the current UTC time, bumped past the newest existing file so goose never
// sees an out of order migration. A name already used in the set is rejected.
func CreateSQLMigration(root string, set Set, name string) (string, error) {
	return createSQLMigration(root, set, name, time.Now().UTC())
}

func createSQLMigration(root string, set Set, name string, now time.Time) (string, error) {
	if root == "" {
		return "", fmt.Errorf("root is required")
	}
	if _, err := ParseSet(string(set)); err != nil {
		return "", err
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	dir := filepath.Join(root, string(set))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	latest, err := latestVersion(dir, safe)
	if err != nil {
		return "", err
	}
	version := now.UTC()
	if !latest.IsZero() && !version.After(latest) {
		version = latest.Add(time.Second)
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), safe))
	template := platformTemplate
	if set == SetTenant {
		template = tenantTemplate
	}
	if err := os.WriteFile(fullpath, []byte(fmt.Sprintf(template, safe)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}

// latestVersion returns the newest version in dir, failing when a migration
// with the same name already exists.
func latestVersion(dir, safe string) (time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("read %q: %w", dir, err)
	}
	var latest time.Time
	for _, e := range entries {
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		if strings.TrimSuffix(e.Name()[len(m[1])+1:], ".sql") == safe {
			return time.Time{}, fmt.Errorf("migration %q already exists in %s", safe, dir)
		}
		v, err := time.Parse(versionLayout, m[1])
		if err != nil {
			continue
		}
		if v.After(latest) {
			latest = v
		}
	}
	return latest, nil
}

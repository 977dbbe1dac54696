package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// Set names one of the embedded migration trees.
type Set string

const (
	SetPlatform Set = "platform"
	SetTenant   Set = "tenant"
)

// SourceDir is where new migration files are authored.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/platform/*.sql migrations/tenant/*.sql
var embedded embed.FS

// ParseSet maps a command-line value onto a migration set.
func ParseSet(value string) (Set, error) {
	switch Set(value) {
	case SetPlatform, SetTenant:
		return Set(value), nil
	default:
		return "", fmt.Errorf("unknown migration set %q (expected platform or tenant)", value)
	}
}

// FS returns the embedded migrations for set rooted at its directory.
func FS(set Set) (fs.FS, error) {
	if _, err := ParseSet(string(set)); err != nil {
		return nil, err
	}
	return fs.Sub(embedded, "migrations/"+string(set))
}

// NewProvider builds a goose provider for set. Providers carry their own state so
// tenant shards can be migrated from concurrent requests.
func NewProvider(db *sql.DB, set Set, dialect goose.Dialect) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dialect == "" {
		dialect = goose.DialectPostgres
	}
	fsys, err := FS(set)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider (%s): %w", set, err)
	}
	return provider, nil
}

// Up applies every pending migration of set.
func Up(ctx context.Context, db *sql.DB, set Set) error {
	provider, err := NewProvider(db, set, goose.DialectPostgres)
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up (%s): %w", set, err)
	}
	return nil
}

// Run executes a goose command (up, down, status, version) for set and returns
// printable output lines.
func Run(ctx context.Context, db *sql.DB, set Set, command string) ([]string, error) {
	provider, err := NewProvider(db, set, goose.DialectPostgres)
	if err != nil {
		return nil, err
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose up: %w", err)
		}
		lines := make([]string, 0, len(results))
		for _, r := range results {
			lines = append(lines, fmt.Sprintf("applied %s", r.Source.Path))
		}
		return lines, nil
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose down: %w", err)
		}
		return []string{fmt.Sprintf("rolled back %s", result.Source.Path)}, nil
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose status: %w", err)
		}
		lines := make([]string, 0, len(statuses))
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			lines = append(lines, fmt.Sprintf("%-24s %s", applied, s.Source.Path))
		}
		return lines, nil
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose version: %w", err)
		}
		return []string{strconv.FormatInt(version, 10)}, nil
	default:
		return nil, fmt.Errorf("unsupported goose command %q", command)
	}
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func MigrateToVersion(ctx context.Context, db *sql.DB, set Set, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	provider, err := NewProvider(db, set, goose.DialectPostgres)
	if err != nil {
		return err
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if _, err := provider.UpTo(ctx, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if _, err := provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

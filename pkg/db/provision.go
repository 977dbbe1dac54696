package db

import (
	"context"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
)

const sqlStateDuplicateDatabase = "42P04"

var databaseNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Provisioner creates a missing tenant database. Implementations must treat an
// existing database as success.
type Provisioner interface {
	EnsureDatabase(ctx context.Context, name string) error
}

// ServerProvisioner issues CREATE DATABASE through the platform connection.
type ServerProvisioner struct {
	admin *gorm.DB
}

// NewServerProvisioner builds a provisioner on top of the platform connection.
func NewServerProvisioner(admin *gorm.DB) (*ServerProvisioner, error) {
	if admin == nil {
		return nil, fmt.Errorf("admin connection required")
	}
	return &ServerProvisioner{admin: admin}, nil
}

// EnsureDatabase creates name if it does not exist yet. Concurrent callers race
// on CREATE DATABASE; the loser sees 42P04 which is reported as success.
func (p *ServerProvisioner) EnsureDatabase(ctx context.Context, name string) error {
	if err := ValidateDatabaseName(name); err != nil {
		return err
	}

	var exists bool
	if err := p.admin.WithContext(ctx).
		Raw("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = ?)", name).
		Scan(&exists).Error; err != nil {
		return fmt.Errorf("check database %s: %w", name, err)
	}
	if exists {
		return nil
	}

	// CREATE DATABASE cannot take bind parameters; the name is validated above.
	if err := p.admin.WithContext(ctx).Exec(fmt.Sprintf(`CREATE DATABASE "%s"`, name)).Error; err != nil {
		if IsDuplicateDatabase(err) {
			return nil
		}
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// NoopProvisioner is used where the driver creates databases on open (sqlite).
type NoopProvisioner struct{}

func (NoopProvisioner) EnsureDatabase(context.Context, string) error { return nil }

// ValidateDatabaseName rejects names that are unsafe to interpolate into DDL.
func ValidateDatabaseName(name string) error {
	if !databaseNameRe.MatchString(name) {
		return fmt.Errorf("invalid database name %q", name)
	}
	return nil
}

// IsDuplicateDatabase reports a "database already exists" failure.
func IsDuplicateDatabase(err error) bool {
	return pkgerrors.SQLState(err) == sqlStateDuplicateDatabase
}

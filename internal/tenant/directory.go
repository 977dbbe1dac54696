package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
)

// Directory reads tenant metadata from the platform database.
type Directory interface {
	FindActiveBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type directory struct {
	db *gorm.DB
}

// NewDirectory builds a directory over the platform connection.
func NewDirectory(conn *gorm.DB) (Directory, error) {
	if conn == nil {
		return nil, fmt.Errorf("platform db required")
	}
	return &directory{db: conn}, nil
}

// FindActiveBySubdomain is an exact, case-sensitive match. Missing and inactive
// tenants are indistinguishable to callers.
func (d *directory) FindActiveBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	if subdomain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
	}
	var t models.Tenant
	err := d.db.WithContext(ctx).
		Where("subdomain = ? AND is_active = ?", subdomain, true).
		First(&t).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
	}
	return &t, nil
}

func (d *directory) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := d.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&t).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup tenant")
	}
	return &t, nil
}

func (d *directory) ListActive(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := d.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("shard_id ASC, subdomain ASC").
		Find(&tenants).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tenants")
	}
	return tenants, nil
}

package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

// PlatformModels are the tables of the platform database.
func PlatformModels() []any {
	return []any{&models.Tenant{}}
}

// TenantModels are the tables every tenant shard carries.
func TenantModels() []any {
	return []any{
		&models.Category{},
		&models.MenuItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Review{},
	}
}

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	meta := map[string]any{"env": cfg.App.Env, "set": string(SetPlatform), "driver": cfg.DB.Driver}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running platform migrations (dev auto-run)")

	if err := Apply(ctx, cfg.DB.Driver, client.DB(), SetPlatform); err != nil {
		return err
	}

	logg.Info(ctx, "platform migrations completed")
	return nil
}

// Apply brings conn up to date with set. Postgres runs the goose files; sqlite,
// used for local runs and tests, is shaped from the models instead.
func Apply(ctx context.Context, driver string, conn *gorm.DB, set Set) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if driver == db.DriverSQLite {
		tables := TenantModels()
		if set == SetPlatform {
			tables = PlatformModels()
		}
		if err := conn.WithContext(ctx).AutoMigrate(tables...); err != nil {
			return fmt.Errorf("auto-migrate %s: %w", set, err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	return Up(ctx, sqlDB, set)
}

// TenantInitializer migrates a shard the first time the pool opens it.
func TenantInitializer(driver string, logg *logger.Logger) db.Initializer {
	return func(ctx context.Context, database string, conn *gorm.DB) error {
		if logg != nil {
			logg.Info(logg.WithField(ctx, "database", database), "migrating tenant shard")
		}
		return Apply(ctx, driver, conn, SetTenant)
	}
}

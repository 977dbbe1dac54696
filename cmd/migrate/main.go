package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|to|create|validate")
	setName := flag.String("set", string(migrate.SetPlatform), "migration set: platform|tenant")
	shard := flag.Int("shard", -1, "tenant shard id (required for -set=tenant)")
	dir := flag.String("dir", migrate.SourceDir, "migrations source directory (for create)")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	set, err := migrate.ParseSet(*setName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		path, err := migrate.CreateSQLMigration(*dir, set, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateSet(set); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"set": string(set),
	})

	sqlDB, closeDB := openTarget(ctx, logg, cfg, set, *shard)
	defer closeDB()

	logg.Info(ctx, "migrate ready")

	var lines []string
	switch *cmd {
	case "up", "down", "status", "version":
		lines, err = migrate.Run(ctx, sqlDB, set, *cmd)
	case "to":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for -cmd=to")
			os.Exit(1)
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, set, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
		os.Exit(1)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
}

// openTarget connects to the platform database or to one tenant shard.
func openTarget(ctx context.Context, logg *logger.Logger, cfg *config.Config, set migrate.Set, shard int) (*sql.DB, func()) {
	if set == migrate.SetPlatform {
		client, err := db.New(ctx, cfg.DB, logg)
		requireResource(ctx, logg, "database", err)
		sqlDB, err := client.DB().DB()
		requireResource(ctx, logg, "sql database", err)
		return sqlDB, func() { _ = client.Close() }
	}

	if shard < 0 {
		fmt.Fprintln(os.Stderr, "missing -shard for -set=tenant")
		os.Exit(1)
	}
	database, err := tenant.DatabaseName(cfg.Tenancy.DatabaseBase, shard)
	requireResource(ctx, logg, "tenant database name", err)
	dsn, err := cfg.DB.WithDatabase(database)
	requireResource(ctx, logg, "tenant dsn", err)
	conn, err := db.Open(db.DriverPostgres, dsn, db.PoolSettings{MaxOpenConns: 1})
	requireResource(ctx, logg, "tenant database", err)
	sqlDB, err := conn.DB()
	requireResource(ctx, logg, "sql database", err)
	logg.Info(logg.WithField(ctx, "database", database), "targeting tenant shard")
	return sqlDB, func() { _ = sqlDB.Close() }
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

// Command initdb prepares a database: it creates the schema, the "admin"
// account (password "admin", change it after the first login) and, when
// SEED_FILE or -seed names a YAML file, the reference data in it.
//
// Running it against an existing database is safe. The schema is created
// with IF NOT EXISTS, an existing admin keeps its password, and seed entries
// whose names already exist are skipped.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/pantry/internal/auth"
	"github.com/sakif/pantry/internal/config"
	"github.com/sakif/pantry/internal/seed"
	"github.com/sakif/pantry/internal/server"
	"github.com/sakif/pantry/internal/service"
)

const adminName = "admin"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	seedFile := flag.String("seed", cfg.SeedFile, "YAML file with reference data")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.DBPath = *dbPath

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(context.Background(), cfg, *seedFile, logger); err != nil {
		logger.Error("initdb failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, seedFile string, logger *slog.Logger) error {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	// Opening the database runs the migrations.
	db, err := server.OpenDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := server.Repositories(db)
	catalog := service.NewCatalogService(repos, auth.NewPasswordService(), logger)

	admin, created, err := catalog.EnsureUser(ctx, adminName, adminName, true)
	if err != nil {
		return err
	}
	if created {
		logger.Info("admin user created", slog.Int64("id", admin.ID()), slog.String("name", admin.Name()))
	} else {
		logger.Info("admin user already exists", slog.Int64("id", admin.ID()))
	}

	if seedFile == "" {
		logger.Info("database ready", slog.String("path", cfg.DBPath))
		return nil
	}

	f, err := seed.ParseFile(seedFile)
	if err != nil {
		return err
	}
	st, err := f.Apply(ctx, repos)
	if err != nil {
		return err
	}

	logger.Info("database ready",
		slog.String("path", cfg.DBPath),
		slog.String("seed", seedFile),
		slog.Int("categories", st.Categories),
		slog.Int("allergies", st.Allergies),
		slog.Int("ingredients", st.Ingredients),
		slog.Int("recipes", st.Recipes),
	)
	return nil
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/esperancehsu/Gestion-Presence/internal/platform/config"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/logging"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		migrationsDir = flag.String("dir", "assets/migrations", "directory containing migration files")
		steps         = flag.Int("steps", 0, "number of migrations to apply for the steps action (negative rolls back)")
	)
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	if err := runMigration(logger, action, *migrationsDir, cfg.Database.DSN(), *steps); err != nil {
		logger.Fatal().Err(err).Str("action", action).Msg("migration failed")
	}

	logger.Info().Str("action", action).Msg("migration completed")
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func runMigration(logger zerolog.Logger, action, dir, dsn string, steps int) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	absDir = filepath.ToSlash(absDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch action {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Down())
	case "steps":
		if steps == 0 {
			return fmt.Errorf("steps action requires a non-zero -steps value")
		}
		return ignoreNoChange(m.Steps(steps))
	case "drop":
		return m.Drop()
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info().Msg("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("current version")
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

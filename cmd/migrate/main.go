package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"github.com/accessibility-build/platform/internal/pkg/env"
	"github.com/accessibility-build/platform/internal/pkg/logging"
)

func main() {
	env.SetupEnvFile()
	logging.Init(logging.Config{Level: env.GetEnv("LOG_LEVEL", "info"), Format: "console", Component: "migrate"})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	dbURL := fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		env.GetEnv("DB_USER", "a11y"),
		env.GetEnv("DB_PASSWORD", "a11y"),
		env.GetEnv("DB_HOST", "db"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "a11y_db"),
	)

	log.Info().
		Str("user", env.GetEnv("DB_USER", "a11y")).
		Str("host", env.GetEnv("DB_HOST", "db")).
		Str("port", env.GetEnv("DB_PORT", "3306")).
		Str("database", env.GetEnv("DB_NAME", "a11y_db")).
		Msg("Connecting to database")

	m, err := migrate.New(env.GetEnv("MIGRATIONS_SOURCE", "file://migrations"), dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise migrations")
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Error().AnErr("source", sourceErr).AnErr("database", dbErr).Msg("Failed to close migration resources")
		}
	}()

	switch command {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info().Msg("No changes: database is up to date")
		case err != nil:
			log.Fatal().Err(err).Msg("Migrations failed")
		default:
			log.Info().Msg("Migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatal().Err(err).Msg("Rolling back the last migration failed")
		}
		log.Info().Msg("Last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal().Msg("Please pass a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid version number")
		}

		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info().Uint64("version", version).Msg("No changes: database already at version")
		case err != nil:
			log.Fatal().Err(err).Uint64("version", version).Msg("Migrating to version failed")
		default:
			log.Info().Uint64("version", version).Msg("Migrated to version")
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info().Msg("No migrations applied yet")
		case err != nil:
			log.Fatal().Err(err).Msg("Reading migration version failed")
		default:
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current migration version")
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run ./cmd/migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - print the current migration version")
}

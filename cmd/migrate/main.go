// Command migrate applies pending database migrations and exits. Useful
// for running schema changes ahead of a deploy instead of at startup.
package main

import (
	"github.com/rs/zerolog/log"

	"github.com/movaia/movaia/internal/config"
	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/logging"
)

func main() {
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.NewDB(database.Config{
		Type:       cfg.DBType,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Name:       cfg.DBName,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Migrations up to date")
}

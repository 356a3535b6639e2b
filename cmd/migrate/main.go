package main

import (
	"fmt"
	"log"

	"ledgerly/backend/config"
	"ledgerly/backend/database"

	"github.com/spf13/viper"
)

func main() {
	cfg, err := config.Load(viper.New(), "")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := config.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}

	db, err := database.OpenLocal(cfg.LocalDB.Driver, cfg.LocalDB.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	fmt.Println("Migrations completed successfully!")
}

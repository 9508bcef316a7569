package main

import (
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"quickbite/internal/config"
	"quickbite/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	m, err := migrate.New("file://migrations", cfg.Database.DSN)
	if err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Init: %v", err))
	}
	defer m.Close()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		log.Fatal("MIGRATE", fmt.Sprintf("Unknown direction %q (want up or down)", direction))
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatal("MIGRATE", fmt.Sprintf("Run: %v", err))
	}
	log.Info("MIGRATE", fmt.Sprintf("Migrations %s complete", direction))
}

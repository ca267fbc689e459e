package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"storefront/pkg/database"
	"storefront/pkg/logger"
)

const usage = "Usage: migrate [up|status|down]"

func main() {
	log, err := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("ENVIRONMENT"))
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	database.SetLogger(log)

	if err := godotenv.Load(); err != nil {
		log.Warn(".env file not found")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := os.Args[1]

	ctx := context.Background()
	db, err := database.Open(ctx, dbURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	switch command {
	case "up":
		err = database.RunMigrations(ctx, db)
	case "status":
		err = database.MigrationStatus(ctx, db)
	case "down":
		err = database.RollbackMigration(ctx, db)
	default:
		fmt.Printf("Unknown command: %s\n%s\n", command, usage)
		os.Exit(1)
	}
	if err != nil {
		log.WithError(err).WithField("command", command).Fatal("Migration failed")
	}
	log.WithField("command", command).Info("Migration command completed")
}

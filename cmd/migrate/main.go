package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"casinoclient/internal/database"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
	log "github.com/sirupsen/logrus"
)

const migrationsDir = "./internal/database/migrations"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		createMigration(os.Args[2])
		return
	}

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		getEnv("ARCHIVE_DB_USERNAME", "postgres"),
		getEnv("ARCHIVE_DB_PASSWORD", "postgres"),
		getEnv("ARCHIVE_DB_HOST", "localhost"),
		getEnv("ARCHIVE_DB_PORT", "5432"),
		getEnv("ARCHIVE_DB_DATABASE", "casino_archive"),
		getEnv("ARCHIVE_DB_SCHEMA", "public"),
	)

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	switch command {
	case "up":
		log.Info("Running migrations...")
		if err := database.RunMigrations(db); err != nil {
			log.WithError(err).Fatal("Migration failed")
		}
		log.Info("Migrations completed successfully")

	case "down":
		log.Info("Rolling back last migration...")
		if err := database.RollbackMigration(db); err != nil {
			log.WithError(err).Fatal("Rollback failed")
		}
		log.Info("Rollback completed successfully")

	case "version":
		version, dirty, err := database.GetMigrationVersion(db)
		if err != nil {
			log.WithError(err).Fatal("Failed to get version")
		}
		if dirty {
			log.Warnf("Current version: %d (DIRTY - needs manual intervention)", version)
		} else {
			log.Infof("Current version: %d", version)
		}

	default:
		log.Errorf("Unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

// createMigration writes an empty up/down pair. New files are picked up by the
// embedded source on the next build.
func createMigration(name string) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		log.WithError(err).Fatal("Failed to read migrations directory")
	}

	count := 0
	for _, file := range files {
		if !file.IsDir() {
			count++
		}
	}
	nextVersion := count/2 + 1

	upFile := fmt.Sprintf("%s/%06d_%s.up.sql", migrationsDir, nextVersion, name)
	downFile := fmt.Sprintf("%s/%06d_%s.down.sql", migrationsDir, nextVersion, name)

	upContent := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		log.WithError(err).Fatal("Failed to create up migration")
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		log.WithError(err).Fatal("Failed to create down migration")
	}

	log.WithFields(log.Fields{"up": upFile, "down": downFile}).Info("Created migration files")
}

func printUsage() {
	fmt.Println("Archive Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Run all pending migrations")
	fmt.Println("  migrate down            Rollback the last migration")
	fmt.Println("  migrate version         Show current migration version")
	fmt.Println("  migrate create <name>   Create a new migration file")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  ARCHIVE_DB_HOST         Database host (default: localhost)")
	fmt.Println("  ARCHIVE_DB_PORT         Database port (default: 5432)")
	fmt.Println("  ARCHIVE_DB_DATABASE     Database name (default: casino_archive)")
	fmt.Println("  ARCHIVE_DB_USERNAME     Database user (default: postgres)")
	fmt.Println("  ARCHIVE_DB_PASSWORD     Database password (default: postgres)")
	fmt.Println("  ARCHIVE_DB_SCHEMA       Search path schema (default: public)")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

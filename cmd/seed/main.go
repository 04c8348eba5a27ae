package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/JaimeStill/agent-chat/internal/migrations"
	"github.com/JaimeStill/agent-chat/pkg/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

const EnvDatabaseDSN = "DATABASE_DSN"

func main() {
	var (
		dsn     = flag.String("dsn", "", "Database URL (postgres://...)")
		all     = flag.Bool("all", false, "Run all seeders")
		catalog = flag.Bool("catalog", false, "Seed agents and presets")
		file    = flag.String("file", "", "External catalog file (overrides embedded)")
		migrate = flag.Bool("migrate", false, "Apply schema migrations before seeding")
		list    = flag.Bool("list", false, "List available seeders")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("env file load failed: %v", err)
	}

	if *list {
		fmt.Println("Available seeders:")
		for _, s := range listSeeders() {
			fmt.Printf("  - %s: %s\n", s.Name(), s.Description())
		}
		return
	}

	if *dsn == "" {
		*dsn = os.Getenv(EnvDatabaseDSN)
	}
	if *dsn == "" {
		log.Fatalf("database connection string required: use -dsn flag or %s env var", EnvDatabaseDSN)
	}

	if *migrate {
		if err := migrations.Up(*dsn, logging.New(&logging.Config{})); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if *file != "" {
		if seeder, ok := getSeeder("catalog"); ok {
			seeder.(*CatalogSeeder).SetFile(*file)
		}
	}

	ctx := context.Background()

	switch {
	case *all:
		if err := runAllSeeders(ctx, db); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
		fmt.Println("all seeders completed successfully")

	case *catalog:
		if err := runSeeder(ctx, db, "catalog"); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
		fmt.Println("catalog seeded successfully")

	default:
		fmt.Println("usage: seed -dsn <url> [-all|-catalog] [-file <path>] [-migrate] [-list]")
		flag.PrintDefaults()
	}
}

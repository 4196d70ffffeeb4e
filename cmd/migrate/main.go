package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"mosaic/internal/infra"
	"mosaic/internal/migrations"
)

func main() {
	_ = godotenv.Load()

	var listFlag bool
	flag.BoolVar(&listFlag, "list", false, "print the embedded migrations and exit")
	flag.Parse()

	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	if listFlag {
		all, err := migrations.Load()
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate: load migrations failed")
		}
		for _, m := range all {
			fmt.Println(m.Version)
		}
		return
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: open database failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate: database unreachable")
	}

	applied, err := migrations.Apply(ctx, db)
	for _, version := range applied {
		logger.Info().Str("version", version).Msg("migrate: applied")
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: failed")
	}
	if len(applied) == 0 {
		logger.Info().Msg("migrate: schema is up to date")
	}
}

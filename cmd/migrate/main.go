// Command migrate applies the embedded schema migrations: migrate [up|down|status].
package main

import (
	"context"
	"fmt"
	"os"

	"studyhub/internal/config"
	"studyhub/internal/db"
	"studyhub/internal/logging"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: "console"})

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logging.Fatal().Err(err).Msg("db connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, command); err != nil {
		logging.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}
	logging.Info().Str("command", command).Msg("migration complete")
}

package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/paperboy/internal/cli"
)

// runHealth opens the data directory and lists its shards, a cheap check
// that the configuration and on-disk layout are usable.
func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	app, err := bootstrap(ctx, envLoader, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer app.Close()

	shards, err := app.catalog.Shards()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list shards: %v\n", err)
		return 1
	}
	fmt.Printf("ok: %s holds %d shards\n", app.cfg.DataDir, len(shards))
	for _, shard := range shards {
		fmt.Printf("  %s\n", shard)
	}
	return 0
}

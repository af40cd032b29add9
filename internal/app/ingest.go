package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/paperboy/internal/cli"
	"horse.fit/paperboy/internal/scrape"
	payloadschema "horse.fit/paperboy/schema"
)

// runIngest feeds one validated scrape batch payload file through the
// engine. The payload uses the canonical batch format (payload_version v1).
func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	payloadFile := fs.String("payload-file", "", "Path to the scrape batch JSON file")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")
	jsonOut := fs.Bool("json", false, "Print the batch result as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*payloadFile) == "" {
		fmt.Fprintln(os.Stderr, "--payload-file is required")
		return 2
	}

	payload, err := os.ReadFile(*payloadFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 2
	}
	batch, err := payloadschema.ValidateScrapeBatchPayload(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	app, err := bootstrap(ctx, envLoader, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer app.Close()

	result, err := app.engine.IngestBatch(ctx, batch.Source, batch.InputRecords())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}
	if err := persistAfterWrite(app); err != nil {
		fmt.Fprintf(os.Stderr, "Persist segments failed: %v\n", err)
		return 1
	}
	return printBatchResult(result, *jsonOut)
}

// runIngestBatch parses a source's native API payload (the scheduler drops
// these in files) and ingests the records.
func runIngestBatch(args []string) int {
	fs := flag.NewFlagSet("ingest-batch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	sourceName := fs.String("source", "", fmt.Sprintf("Source name (one of %v)", scrape.Names()))
	payloadFile := fs.String("payload-file", "", "Path to the source's native API response")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")
	jsonOut := fs.Bool("json", false, "Print the batch result as JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if strings.TrimSpace(*sourceName) == "" || strings.TrimSpace(*payloadFile) == "" {
		fmt.Fprintln(os.Stderr, "--source and --payload-file are required")
		return 2
	}

	source, err := scrape.ByName(*sourceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	payload, err := os.ReadFile(*payloadFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
		return 2
	}
	records, err := source.Parse(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	app, err := bootstrap(ctx, envLoader, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer app.Close()

	result, err := app.engine.IngestBatch(ctx, source.Name(), records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}
	if err := persistAfterWrite(app); err != nil {
		fmt.Fprintf(os.Stderr, "Persist segments failed: %v\n", err)
		return 1
	}
	return printBatchResult(result, *jsonOut)
}

func persistAfterWrite(app *appContext) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return app.engine.PersistSegments(ctx)
}

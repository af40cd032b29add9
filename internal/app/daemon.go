package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"horse.fit/paperboy/internal/cli"
	"horse.fit/paperboy/internal/scrape"
)

// runDaemon runs the scheduler collaborator: on every cron tick it sweeps
// the spool directory for payload files dropped by the scrapers, ingests
// them, and moves them to processed/ or failed/. File names carry the
// source: "<source>-<anything>.json".
func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	cronSpec := fs.String("cron", "", "Cron schedule (overrides PB_CRON_SPEC)")
	sweepOnStart := fs.Bool("sweep-on-start", true, "Run one sweep immediately before scheduling")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap(ctx, envLoader, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer app.Close()

	spec := app.cfg.CronSpec
	if strings.TrimSpace(*cronSpec) != "" {
		spec = *cronSpec
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if *sweepOnStart {
		app.sweepSpool(ctx)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(spec, func() { app.sweepSpool(ctx) }); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid cron spec %q: %v\n", spec, err)
		return 2
	}
	scheduler.Start()
	app.logger.Info().Str("cron", spec).Str("spool", app.cfg.SpoolDir).Msg("daemon started")

	<-sigCh
	cancel()
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		app.logger.Warn().Msg("daemon stop timed out waiting for running sweep")
	}

	persistCtx, persistCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer persistCancel()
	if err := app.engine.PersistSegments(persistCtx); err != nil {
		app.logger.Error().Err(err).Msg("persist segments on shutdown failed")
	}
	app.logger.Info().Msg("daemon stopped")
	return 0
}

// sweepSpool ingests every payload file currently in the spool directory.
// A failure on one file never blocks the others.
func (a *appContext) sweepSpool(ctx context.Context) {
	entries, err := os.ReadDir(a.cfg.SpoolDir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("spool", a.cfg.SpoolDir).Msg("read spool dir failed")
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(a.cfg.SpoolDir, entry.Name())
		if err := a.ingestSpoolFile(ctx, entry.Name(), path); err != nil {
			a.logger.Error().Err(err).Str("file", entry.Name()).Msg("spool file failed")
			a.moveSpoolFile(path, "failed")
			continue
		}
		a.moveSpoolFile(path, "processed")
	}

	persistCtx, persistCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer persistCancel()
	if err := a.engine.PersistSegments(persistCtx); err != nil {
		a.logger.Error().Err(err).Msg("persist segments after sweep failed")
	}
}

func (a *appContext) ingestSpoolFile(ctx context.Context, name, path string) error {
	sourceName, _, _ := strings.Cut(strings.TrimSuffix(name, ".json"), "-")
	source, err := scrape.ByName(sourceName)
	if err != nil {
		return err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	records, err := source.Parse(payload)
	if err != nil {
		return err
	}

	result, err := a.engine.IngestBatch(ctx, source.Name(), records)
	if err != nil {
		return err
	}
	a.logger.Info().
		Str("file", name).
		Str("run_id", result.RunID).
		Int("accepted", result.Accepted).
		Int("rejected", result.Rejected).
		Msg("spool file ingested")
	return nil
}

func (a *appContext) moveSpoolFile(path, bucket string) {
	dir := filepath.Join(a.cfg.SpoolDir, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.logger.Error().Err(err).Str("dir", dir).Msg("create spool bucket failed")
		return
	}
	target := filepath.Join(dir, fmt.Sprintf("%d-%s", time.Now().UTC().UnixNano(), filepath.Base(path)))
	if err := os.Rename(path, target); err != nil {
		a.logger.Error().Err(err).Str("file", path).Msg("move spool file failed")
	}
}

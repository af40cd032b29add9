package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"horse.fit/paperboy/internal/cli"
	"horse.fit/paperboy/internal/cluster"
	"horse.fit/paperboy/internal/store"
	"horse.fit/paperboy/internal/story"
)

const backupFileExt = ".jsonl"

func runBackup(args []string) int {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	shardFlag := fs.String("shard", "", "Shard to dump, YYYY-MM")
	out := fs.String("out", "", "Output file (default <backup-dir>/<shard>.jsonl, \"-\" for stdout)")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	shard, ok := story.ShardFromString(strings.TrimSpace(*shardFlag))
	if !ok {
		fmt.Fprintln(os.Stderr, "--shard must be YYYY-MM")
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

	if *out == "-" {
		count, err := app.engine.Backup(shard, os.Stdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Backup failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Dumped %d records from %s\n", count, shard)
		return 0
	}

	path := strings.TrimSpace(*out)
	if path == "" {
		if err := os.MkdirAll(app.cfg.BackupDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create backup dir: %v\n", err)
			return 1
		}
		path = filepath.Join(app.cfg.BackupDir, shard.String()+backupFileExt)
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create backup file: %v\n", err)
		return 1
	}
	count, err := app.engine.Backup(shard, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backup failed: %v\n", err)
		return 1
	}
	fmt.Printf("Dumped %d records from %s to %s\n", count, shard, path)
	return 0
}

func runRestore(args []string) int {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	shardFlag := fs.String("shard", "", "Shard to restore, YYYY-MM")
	file := fs.String("file", "", "Backup file (default <backup-dir>/<shard>.jsonl)")
	force := fs.Bool("force", false, "Overwrite a shard that already holds stories")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	shard, ok := story.ShardFromString(strings.TrimSpace(*shardFlag))
	if !ok {
		fmt.Fprintln(os.Stderr, "--shard must be YYYY-MM")
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

	path := strings.TrimSpace(*file)
	if path == "" {
		path = filepath.Join(app.cfg.BackupDir, shard.String()+backupFileExt)
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open backup file: %v\n", err)
		return 1
	}
	records, err := store.ReadBackup(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read backup: %v\n", err)
		return 1
	}

	restored, err := app.engine.Restore(ctx, shard, records, *force)
	if errors.Is(err, cluster.ErrShardNotEmpty) {
		fmt.Fprintf(os.Stderr, "Shard %s is not empty; rerun with --force to overwrite it\n", shard)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Restore failed: %v\n", err)
		return 1
	}
	fmt.Printf("Restored %d records into %s from %s\n", restored, shard, path)
	return 0
}

func runReplay(args []string) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	shardFlag := fs.String("shard", "", "Shard to replay, YYYY-MM")
	force := fs.Bool("force", false, "Replay over a shard that already holds stories")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	shard, ok := story.ShardFromString(strings.TrimSpace(*shardFlag))
	if !ok {
		fmt.Fprintln(os.Stderr, "--shard must be YYYY-MM")
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

	replayed, err := app.engine.Replay(ctx, shard, *force)
	if errors.Is(err, cluster.ErrShardNotEmpty) {
		fmt.Fprintf(os.Stderr, "Shard %s is not empty; rerun with --force to rebuild it\n", shard)
		return 1
	}
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Shard %s does not exist\n", shard)
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", err)
		return 1
	}
	fmt.Printf("Replayed %d records for %s\n", replayed, shard)
	return 0
}

// runInit bulk-loads a directory of per-shard backup files, named
// "<YYYY-MM>.jsonl", into an empty data directory.
func runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	dir := fs.String("dir", "", "Directory of backup files (default <backup-dir>)")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")

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

	path := strings.TrimSpace(*dir)
	if path == "" {
		path = app.cfg.BackupDir
	}
	backups, err := readBackupDir(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if len(backups) == 0 {
		fmt.Fprintf(os.Stderr, "No %s backup files found in %s\n", backupFileExt, path)
		return 1
	}

	total, err := app.engine.Initialize(ctx, backups)
	if errors.Is(err, cluster.ErrShardNotEmpty) {
		fmt.Fprintln(os.Stderr, "Data directory is not empty; init only loads into empty shards")
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initialize failed: %v\n", err)
		return 1
	}
	fmt.Printf("Loaded %d records across %d shards from %s\n", total, len(backups), path)
	return 0
}

func readBackupDir(dir string) (map[story.Shard][]story.InputRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}
	backups := make(map[story.Shard][]story.InputRecord)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, backupFileExt) {
			continue
		}
		shard, ok := story.ShardFromString(strings.TrimSuffix(name, backupFileExt))
		if !ok {
			return nil, fmt.Errorf("backup file %s is not named <YYYY-MM>%s", name, backupFileExt)
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		records, err := store.ReadBackup(f)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		backups[shard] = records
	}
	return backups, nil
}

package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "serve":
		return runServe(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "ingest-batch":
		return runIngestBatch(args[1:])
	case "daemon":
		return runDaemon(args[1:])
	case "search":
		return runSearch(args[1:])
	case "story":
		return runStory(args[1:])
	case "tags":
		return runTags(args[1:])
	case "stats":
		return runStats(args[1:])
	case "backup":
		return runBackup(args[1:])
	case "restore":
		return runRestore(args[1:])
	case "replay":
		return runReplay(args[1:])
	case "init":
		return runInit(args[1:])
	case "health":
		return runHealth(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "paperboy CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  paperboy <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve         Start the HTTP API server")
	fmt.Fprintln(os.Stderr, "  ingest        Ingest one scrape batch payload file")
	fmt.Fprintln(os.Stderr, "  ingest-batch  Parse a source's native API payload and ingest it")
	fmt.Fprintln(os.Stderr, "  daemon        Sweep the spool directory on a cron schedule")
	fmt.Fprintln(os.Stderr, "  search        Query the story index")
	fmt.Fprintln(os.Stderr, "  story         Show one story with all contributions")
	fmt.Fprintln(os.Stderr, "  tags          Inspect the tag vocabulary and tag trends")
	fmt.Fprintln(os.Stderr, "  stats         Per-shard story and index counts")
	fmt.Fprintln(os.Stderr, "  backup        Dump a shard's raw records to a backup file")
	fmt.Fprintln(os.Stderr, "  restore       Replace a shard from a backup file")
	fmt.Fprintln(os.Stderr, "  replay        Rebuild a shard from its own raw log")
	fmt.Fprintln(os.Stderr, "  init          Bulk-load backup files into an empty data dir")
	fmt.Fprintln(os.Stderr, "  health        Verify the data directory opens")
	fmt.Fprintln(os.Stderr, "  hash-token    Print the bcrypt hash for an admin token")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"paperboy <command> -h\" for command-specific flags.")
}

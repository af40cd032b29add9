package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/paperboy/internal/cli"
)

// runTags inspects the tag vocabulary: lists canonical tags, shows the raw
// spellings behind one tag, or buckets a tag's story counts per shard.
func runTags(args []string) int {
	fs := flag.NewFlagSet("tags", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	spellings := fs.String("spellings", "", "Show the raw spellings mapped to this canonical tag")
	popularity := fs.String("popularity", "", "Show per-shard story counts for this tag")
	from := fs.String("from", "", "Earliest shard to include (RFC3339)")
	to := fs.String("to", "", "Latest shard to include (RFC3339)")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	needIndex := strings.TrimSpace(*popularity) != ""
	app, err := bootstrap(ctx, envLoader, needIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer app.Close()

	if tag := strings.ToLower(strings.TrimSpace(*spellings)); tag != "" {
		raw := app.engine.TagSpellings(tag)
		if raw == nil {
			fmt.Fprintf(os.Stderr, "Unknown tag %q\n", tag)
			return 1
		}
		if outputFormat == outputFormatJSON {
			if err := printJSON(map[string]any{"tag": tag, "spellings": raw}); err != nil {
				return 1
			}
			return 0
		}
		fmt.Printf("%s: %s\n", tag, strings.Join(raw, ", "))
		return 0
	}

	if tag := strings.ToLower(strings.TrimSpace(*popularity)); tag != "" {
		fromTime, err := parseOptionalRFC3339("--from", *from)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		toTime, err := parseOptionalRFC3339("--to", *to)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		buckets := app.engine.TagPopularity(tag, fromTime, toTime)
		if outputFormat == outputFormatJSON {
			if err := printJSON(map[string]any{"tag": tag, "buckets": buckets}); err != nil {
				return 1
			}
			return 0
		}
		rows := make([][]string, 0, len(buckets))
		for _, b := range buckets {
			rows = append(rows, []string{b.Shard.String(), strconv.Itoa(b.Count)})
		}
		if err := writeTable([]string{"SHARD", "STORIES"}, rows); err != nil {
			return 1
		}
		return 0
	}

	tags := app.engine.Tags()
	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"tags": tags}); err != nil {
			return 1
		}
		return 0
	}
	for _, tag := range tags {
		fmt.Println(tag)
	}
	return 0
}

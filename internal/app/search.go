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
	"horse.fit/paperboy/internal/index"
	"horse.fit/paperboy/internal/story"
)

func runSearch(args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	text := fs.String("q", "", "Full-text query over titles and tags")
	tags := fs.String("tags", "", "Comma-separated canonical tags (all must match)")
	domain := fs.String("domain", "", "Domain filter, natural label order (matches subdomains)")
	from := fs.String("from", "", "Earliest story creation time (RFC3339)")
	to := fs.String("to", "", "Latest story creation time (RFC3339)")
	offset := fs.Int("offset", 0, "Result offset")
	limit := fs.Int("limit", index.DefaultLimit, "Result limit")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")

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

	q := index.Query{Text: strings.TrimSpace(*text), Offset: *offset, Limit: *limit}
	if *tags != "" {
		for _, t := range strings.Split(*tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Tags = append(q.Tags, strings.ToLower(t))
			}
		}
	}
	if *domain != "" {
		q.DomainPrefix = story.ReverseDomain(strings.ToLower(strings.TrimSpace(*domain)))
	}
	if q.From, err = parseOptionalRFC3339("--from", *from); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if q.To, err = parseOptionalRFC3339("--to", *to); err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	docs := app.engine.Search(q)
	if outputFormat == outputFormatJSON {
		if err := printJSON(docs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode results: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		rows = append(rows, []string{
			string(doc.ID),
			strconv.FormatFloat(doc.Score, 'f', 2, 64),
			truncateForTable(doc.Title, 60),
			doc.Domain,
			strings.Join(doc.Tags, ","),
			formatUTCTimestamp(doc.CreatedAt),
		})
	}
	if err := writeTable([]string{"ID", "SCORE", "TITLE", "DOMAIN", "TAGS", "CREATED"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write table: %v\n", err)
		return 1
	}
	return 0
}

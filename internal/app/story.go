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
	"horse.fit/paperboy/internal/store"
	"horse.fit/paperboy/internal/story"
)

func runStory(args []string) int {
	fs := flag.NewFlagSet("story", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	format := fs.String("format", outputFormatJSON, "Output format: table or json")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: paperboy story <story-id>")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
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

	st, err := app.engine.StoryByID(ctx, story.ID(fs.Arg(0)))
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Story %s not found\n", fs.Arg(0))
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load story: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(st); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode story: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("%s\n", st.Title)
	fmt.Printf("  id:       %s\n", st.ID)
	fmt.Printf("  url:      %s\n", st.CanonicalURL)
	fmt.Printf("  domain:   %s\n", st.NormalizedDomain)
	fmt.Printf("  tags:     %s\n", strings.Join(st.Tags.List(), ", "))
	fmt.Printf("  score:    %.2f\n", st.Score)
	fmt.Printf("  created:  %s\n", formatUTCTimestamp(st.CreatedAt))
	fmt.Printf("  updated:  %s\n", formatUTCTimestamp(st.LastUpdatedAt))
	fmt.Printf("  sources:\n")
	for _, c := range st.Contributions {
		fmt.Printf("    %-12s signal=%.0f comments=%d submitted=%s\n",
			c.SourceName, c.SourceSignal, c.CommentCount, formatUTCTimestamp(c.SubmittedAt))
	}
	return 0
}

package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"horse.fit/paperboy/internal/auth"
)

// runHashToken prints the bcrypt hash of an admin token, for PB_ADMIN_TOKEN_HASH.
func runHashToken(args []string) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 || fs.Arg(0) == "" {
		fmt.Fprintln(os.Stderr, "usage: paperboy hash-token <token>")
		return 2
	}

	hash, err := auth.HashToken(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}

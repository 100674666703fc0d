// Package main provides a small operator CLI that resets a date's
// failed Articles back to pending, for environments where hitting
// /retry-failed-tasks over HTTP isn't convenient.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hn-digest/hn-digest-go/internal/config"
	"github.com/hn-digest/hn-digest-go/internal/storage"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("retry", flag.ContinueOnError)
	date := fs.String("date", "", "target date in YYYY-MM-DD form (required)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *date == "" {
		fmt.Fprintln(os.Stderr, "retry: -date is required")
		return 1
	}
	if _, err := time.Parse("2006-01-02", *date); err != nil {
		fmt.Fprintf(os.Stderr, "retry: invalid -date %q: %v\n", *date, err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "retry: loading config: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "retry: opening task store: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	count, err := db.RetryFailed(ctx, *date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "retry: %v\n", err)
		return 1
	}

	fmt.Printf("retried %d failed article(s) for %s\n", count, *date)
	return 0
}

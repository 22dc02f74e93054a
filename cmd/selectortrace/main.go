package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fourbyte/selectortrace/internal/app"
	"github.com/fourbyte/selectortrace/internal/config"
	"github.com/fourbyte/selectortrace/internal/lookup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "lookup" {
		runLookup(os.Args[2:])
		return
	}

	mode := flag.String("mode", "", "run mode: harvest, query or migrate (overrides SELECTORTRACE_MODE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flag overrides env var.
	if *mode != "" {
		cfg.Mode = *mode
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// runLookup implements `selectortrace lookup <hash-or-text>`, a one-shot
// operator convenience that queries the store directly instead of going
// through the HTTP query service.
func runLookup(args []string) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintln(os.Stderr, "usage: selectortrace lookup <hash-or-text>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := lookup.Run(ctx, cfg, os.Stdout, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

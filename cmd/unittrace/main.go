package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"backoffice/internal/config"
	"backoffice/internal/db"
	"backoffice/internal/logger"
	"backoffice/internal/repository"
	"backoffice/internal/service"
)

type options struct {
	serial  string
	format  string
	outPath string
	at      string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		ServiceName: "unittrace",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      "console",
		Output:      os.Stderr,
	})

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Error(ctx, "database.connect_failed", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := service.New(repository.New(pool), nil, service.Options{Logger: log})

	out := io.Writer(os.Stdout)
	if opts.outPath != "" {
		file, err := os.Create(opts.outPath)
		if err != nil {
			log.Error(ctx, "output.create_failed", err)
			os.Exit(1)
		}
		defer file.Close()
		out = file
	}

	if err := run(ctx, svc, opts, out); err != nil {
		log.Error(log.WithField(ctx, "serial", opts.serial), "unittrace.failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("unittrace", flag.ContinueOnError)
	fs.StringVar(
		&opts.serial,
		"serial",
		"",
		"serial number of the unit to trace",
	)
	fs.StringVar(
		&opts.format,
		"format",
		"text",
		"output format: text, json or xlsx",
	)
	fs.StringVar(
		&opts.outPath,
		"out",
		"",
		"write output to this file instead of stdout",
	)
	fs.StringVar(
		&opts.at,
		"at",
		"",
		"print only the state at this instant (RFC3339 or YYYY-MM-DD)",
	)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.serial = strings.TrimSpace(opts.serial)
	opts.format = strings.ToLower(strings.TrimSpace(opts.format))
	if opts.serial == "" {
		return options{}, fmt.Errorf("-serial is required")
	}
	switch opts.format {
	case formatText, formatJSON, formatXLSX:
	default:
		return options{}, fmt.Errorf("invalid -format: %q (expected text, json or xlsx)", opts.format)
	}
	if opts.format == formatXLSX && opts.outPath == "" {
		return options{}, fmt.Errorf("-out is required for xlsx output")
	}
	if opts.at != "" {
		if _, err := parseInstant(opts.at); err != nil {
			return options{}, err
		}
	}
	return opts, nil
}

func parseInstant(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -at: %q", raw)
	}
	return parsed, nil
}

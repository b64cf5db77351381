// Command statement parses a bank statement PDF offline and prints the
// transactions and detected subscriptions as JSON.
//
//	statement [-format auto|a|b] [-year N] [-tolerance N] file.pdf
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/extractor"
	"github.com/FACorreiaa/subscription-tracker/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/subscription-tracker/internal/domain/import/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "statement:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("statement", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		format    = fs.String("format", "auto", "statement layout: auto, a or b")
		year      = fs.Int("year", 0, "statement year for layouts without one (0 infers it)")
		tolerance = fs.Int("tolerance", extractor.DefaultRowTolerance, "vertical distance within which text shares a row")
		verbose   = fs.Bool("v", false, "log pipeline progress to stderr")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: statement [flags] file.pdf")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one PDF file is required")
	}

	f, err := parser.ParseFormat(*format)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read statement: %w", err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	svc := importservice.NewImportService(
		extractor.NewExtractor(nil, extractor.WithRowTolerance(*tolerance)),
		logger,
	)
	result, err := svc.ParsePDF(ctx, data, importservice.Options{Format: f, StatementYear: *year})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/receipt-parser/internal/app"
	"github.com/joseph-ayodele/receipt-parser/internal/async"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/export"
	"github.com/joseph-ayodele/receipt-parser/internal/metrics"
	"github.com/joseph-ayodele/receipt-parser/internal/pipeline"
	ingestsvc "github.com/joseph-ayodele/receipt-parser/internal/services/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("receipt-batch")
	var (
		dir     = fs.StringLong("dir", "", "directory to process receipts from (required)")
		out     = fs.StringLong("out", "", "output file path (optional, defaults to parent directory)")
		format  = fs.StringLong("format", "xlsx", "export format: xlsx or csv")
		owner   = fs.StringLong("owner", "Local Batch", "owner the receipts are filed under")
		fromStr = fs.StringLong("from", "", "from date YYYY-MM-DD")
		toStr   = fs.StringLong("to", "", "to date YYYY-MM-DD")
		workers = fs.IntLong("workers", cfg.Worker.Workers, "parse workers")
		again   = fs.BoolLong("reprocess", "parse files whose bytes were landed by an earlier run")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS")); err != nil {
		printError("%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		printError("error: %v\n", err)
		os.Exit(2)
	}

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(2)
	}
	*format = strings.ToLower(*format)
	if *format != "xlsx" && *format != "csv" {
		printError("Error: --format must be xlsx or csv\n")
		os.Exit(2)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "receipts."+*format)
	}

	from, err := parseDay(*fromStr)
	if err != nil {
		printError("Error: invalid --from date format, use YYYY-MM-DD: %v\n", err)
		os.Exit(2)
	}
	to, err := parseDay(*toStr)
	if err != nil {
		printError("Error: invalid --to date format, use YYYY-MM-DD: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	logger := app.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	parser, err := app.NewParser(cfg, logger, pipeline.WithObserver(m))
	if err != nil {
		logger.Error("failed to build parser", "error", err)
		os.Exit(1)
	}
	svc, err := app.OpenServices(ctx, cfg, parser, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	ownerRec, err := svc.Owners.GetOrCreateByName(ctx, *owner, cfg.Extract.DefaultCurrency)
	if err != nil {
		logger.Error("failed to get or create owner", "error", err)
		os.Exit(1)
	}
	logger.Info("using owner", "owner_id", ownerRec.ID, "name", ownerRec.Name)

	var processed, failures atomic.Int64
	queue := async.NewProcessorQueue(svc.Processor, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(cfg.Worker.QueueSize),
		async.WithProcessTimeout(cfg.Worker.Timeout),
		async.WithHooks(m),
		async.WithOnResult(func(_ async.Job, _ pipeline.ProcessResult, err error) {
			if err != nil {
				failures.Add(1)
				return
			}
			processed.Add(1)
		}),
	)

	intake := ingestsvc.NewService(svc.Ingestor, svc.Owners, queue, logger, ingestsvc.WithObserver(m))
	res, err := intake.IngestDirectory(ctx, ingestsvc.DirectoryIngestRequest{
		OwnerID:        ownerRec.ID.String(),
		RootPath:       *dir,
		SkipHidden:     true,
		SkipDuplicates: !*again,
	})
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		queue.Shutdown(ctx)
		os.Exit(1)
	}
	stats := res.Statistics
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated,
		"queued", res.Queued)
	queue.Shutdown(ctx)

	exporter := export.NewService(svc.Receipts, logger)
	var data []byte
	if *format == "csv" {
		data, err = exporter.ExportReceiptsCSV(ctx, ownerRec.ID, from, to)
	} else {
		data, err = exporter.ExportReceiptsXLSX(ctx, ownerRec.ID, from, to)
	}
	if err != nil {
		logger.Error("failed to export receipts", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_processed", processed.Load(),
		"failures", failures.Load(),
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files ingested: %d\n", stats.Succeeded)
	fmt.Printf("- Files processed: %d\n", processed.Load())
	fmt.Printf("- Failures: %d\n", failures.Load())
	fmt.Printf("- Output: %s\n", *out)
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

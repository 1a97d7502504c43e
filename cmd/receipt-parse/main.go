package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/joseph-ayodele/receipt-parser/internal/app"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/pipeline"
	"github.com/joseph-ayodele/receipt-parser/internal/receipt"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type output struct {
	File   string          `json:"file"`
	Record *receipt.Record `json:"record,omitempty"`
	Error  *failure        `json:"error,omitempty"`
}

type failure struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	fs := ff.NewFlagSet("receipt-parse")
	var (
		currency = fs.StringLong("currency", cfg.Extract.DefaultCurrency, "currency used when a document names none")
		rules    = fs.StringLong("rules", cfg.Extract.RulesFile, "YAML file with extra category keywords")
		lang     = fs.StringLong("lang", cfg.OCR.DefaultLang, "OCR language when script detection is inconclusive")
		noRaster = fs.BoolLong("no-raster", "fail on textless PDFs instead of OCRing their pages")
		pretty   = fs.BoolLong("pretty", "indent JSON output")
		logLevel = fs.StringLong("log-level", cfg.LogLevel, "debug, info, warn or error")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPTS")); err != nil {
		printError("%s\n", ffhelp.Flags(fs))
		if errors.Is(err, ff.ErrHelp) {
			os.Exit(0)
		}
		printError("error: %v\n", err)
		os.Exit(2)
	}
	files := fs.GetArgs()
	if len(files) == 0 {
		printError("Error: at least one file is required\n")
		os.Exit(2)
	}

	cfg.Extract.DefaultCurrency = *currency
	cfg.Extract.RulesFile = *rules
	cfg.OCR.DefaultLang = *lang
	if *noRaster {
		cfg.OCR.PDFRasterFallback = false
	}
	cfg.LogLevel = *logLevel
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	logger := app.NewLogger(cfg.LogLevel)

	parser, err := app.NewParser(cfg, logger)
	if err != nil {
		logger.Error("failed to build parser", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}

	failures := 0
	for _, path := range files {
		out := parseOne(ctx, parser, path)
		if out.Error != nil {
			failures++
		}
		if err := enc.Encode(out); err != nil {
			logger.Error("failed to write output", "file", path, "error", err)
			os.Exit(1)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

func parseOne(ctx context.Context, parser *pipeline.Parser, path string) output {
	out := output{File: path}
	content, err := os.ReadFile(path)
	if err != nil {
		out.Error = &failure{Kind: "ReadFailure", Message: err.Error()}
		return out
	}

	rec, err := parser.ParseDocument(ctx, content, filepath.Base(path))
	if err != nil {
		var pe *pipeline.Error
		if errors.As(err, &pe) {
			out.Error = &failure{Kind: string(pe.Kind), Reason: string(pe.Reason), Message: pe.UserMessage()}
		} else {
			out.Error = &failure{Kind: "InternalFailure", Message: err.Error()}
		}
		return out
	}
	out.Record = &rec
	return out
}

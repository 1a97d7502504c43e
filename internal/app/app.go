package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/extract"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
	"github.com/joseph-ayodele/receipt-parser/internal/pipeline"
	"github.com/joseph-ayodele/receipt-parser/internal/receipt"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

// NewLogger returns a JSON logger writing to stderr at the named level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// NewParser wires text acquisition, field extraction and validation from cfg.
func NewParser(cfg *common.Config, logger *slog.Logger, opts ...pipeline.Option) (*pipeline.Parser, error) {
	acq := ocr.NewExtractor(ocr.Config{
		Tesseract:         cfg.OCR.Tesseract,
		TessdataDir:       cfg.OCR.TessdataDir,
		DefaultLang:       cfg.OCR.DefaultLang,
		PSM:               cfg.OCR.PSM,
		Timeout:           cfg.OCR.Timeout,
		PDFRasterFallback: cfg.OCR.PDFRasterFallback,
		DPI:               cfg.OCR.PDFDPI,
		MaxPages:          cfg.OCR.PDFMaxPages,
	}, logger)

	var table *extract.CategoryTable
	if cfg.Extract.RulesFile != "" {
		extra, err := extract.LoadCategoryRules(cfg.Extract.RulesFile)
		if err != nil {
			return nil, common.NewAppError("CONFIG_ERROR", err.Error(), common.ErrInvalidInput)
		}
		table = extract.NewCategoryTable(extract.WithOverlay(extra))
		logger.Info("loaded category rules", "path", cfg.Extract.RulesFile, "keywords", len(extra))
	}
	ex := extract.NewExtractor(extract.Config{
		DefaultCurrency: cfg.Extract.DefaultCurrency,
		AmountCeiling:   cfg.Extract.AmountCeiling,
		Categories:      table,
	}, logger)

	val, err := receipt.NewValidator(cfg.Extract.DefaultCurrency, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.NewParser(acq, ex, val, logger, opts...), nil
}

// Services is the storage side of the batch and watch commands.
type Services struct {
	DB        *repository.DB
	Landing   *ingest.LocalStore
	Owners    repository.OwnerRepository
	Receipts  repository.ReceiptRepository
	Jobs      repository.ParseJobRepository
	Processor *pipeline.Processor
	Ingestor  *ingest.FSIngestor
}

// OpenDB opens, checks and migrates the configured database.
func OpenDB(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenServices opens the database and the landing store.
func OpenServices(ctx context.Context, cfg *common.Config, parser *pipeline.Parser, logger *slog.Logger) (*Services, error) {
	db, err := OpenDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	landing, err := ingest.OpenLocalStore(cfg.Landing.Dir, cfg.Landing.IndexPath, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open landing store: %w", err)
	}

	s := &Services{
		DB:       db,
		Landing:  landing,
		Owners:   repository.NewOwnerRepository(db, logger),
		Receipts: repository.NewReceiptRepository(db, logger),
		Jobs:     repository.NewParseJobRepository(db, logger),
		Ingestor: ingest.NewFSIngestor(landing, logger),
	}
	s.Processor = pipeline.NewProcessor(parser, landing, s.Receipts, s.Jobs, logger)
	return s, nil
}

// Close releases the landing index and the database.
func (s *Services) Close() {
	if err := s.Landing.Close(); err != nil {
		slog.Warn("failed to close landing store", "error", err)
	}
	s.DB.Close()
}

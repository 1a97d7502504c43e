package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-parser/constants"
)

type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string

	DefaultLang string        // used when script detection is inconclusive; default "eng"
	PSM         int           // page segmentation for the recognition pass; default 6 (single uniform block)
	Timeout     time.Duration // bound on OSD+OCR for one page; default 60s

	// PDFRasterFallback renders textless PDF pages and OCRs them.
	// When false a textless PDF fails with NoSelectableText.
	PDFRasterFallback bool
	DPI               int // rasterization DPI for scanned PDFs, default 300
	MaxPages          int // 0 = no limit

	MinDeskewDim int // images smaller than this on either side are not deskewed; default 32
}

// ExtractedText is the single text blob produced for one document.
type ExtractedText struct {
	Text     string
	Source   constants.TextSource
	Language string // OCR language, empty unless Source is OCR
	Pages    int
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	pdf    PDFOpener
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the external command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithPDFOpener replaces the PDF backend.
func WithPDFOpener(o PDFOpener) Option {
	return func(e *Extractor) {
		if o != nil {
			e.pdf = o
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinDeskewDim <= 0 {
		cfg.MinDeskewDim = 32
	}
	e := &Extractor{
		cfg:    cfg,
		runner: execRunner{logger: logger},
		pdf:    fitzOpener{},
		logger: logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Acquire produces the text of a document whose type is already known.
// Every successful result has non-empty trimmed text.
func (e *Extractor) Acquire(ctx context.Context, content []byte, ft constants.FileType) (ExtractedText, error) {
	start := time.Now()
	e.logger.Debug("starting text acquisition", "file_type", ft, "size", len(content))

	var (
		res ExtractedText
		err error
	)
	switch ft {
	case constants.TEXT:
		res, err = e.acquireText(content)
	case constants.PDF:
		res, err = e.acquirePDF(ctx, content)
	case constants.IMAGE:
		res, err = e.acquireImage(ctx, content)
	default:
		return ExtractedText{}, fmt.Errorf("acquire: unknown file type %q", ft)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Warn("text acquisition failed", "file_type", ft, "duration_ms", res.Duration.Milliseconds(), "error", err)
		return res, err
	}

	if strings.TrimSpace(res.Text) == "" {
		msg := msgEmptyText
		if ft == constants.PDF {
			msg = msgPDFNoText
		}
		return res, acqErr(ReasonEmptyText, msg, nil)
	}

	e.logger.Info("text acquired",
		"file_type", ft,
		"source", res.Source,
		"language", res.Language,
		"pages", res.Pages,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

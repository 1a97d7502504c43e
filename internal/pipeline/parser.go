package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/extract"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
	"github.com/joseph-ayodele/receipt-parser/internal/receipt"
)

// TextAcquirer turns document bytes of a known type into text.
type TextAcquirer interface {
	Acquire(ctx context.Context, content []byte, ft constants.FileType) (ocr.ExtractedText, error)
}

// FieldExtractor reads candidate fields out of text.
type FieldExtractor interface {
	Extract(text string) extract.Fields
}

// RecordValidator turns candidate fields into a record.
type RecordValidator interface {
	Validate(f extract.Fields) (receipt.Record, error)
}

// Outcome summarizes one run for observers.
type Outcome struct {
	FileType constants.FileType
	Source   constants.TextSource
	Kind     Kind // empty on success and for failures outside the taxonomy
	Reason   ocr.Reason
	Duration time.Duration
	Err      error
}

// Observer is notified once per run.
type Observer interface {
	ObserveParse(o Outcome)
}

// Result carries the record together with the intermediate values that produced it.
type Result struct {
	Record   receipt.Record
	FileType constants.FileType
	Text     ocr.ExtractedText
	Fields   extract.Fields
}

// Parser runs classify, acquire, extract and validate for one document at a time.
// It holds no per-document state and may be shared across goroutines.
type Parser struct {
	acquirer  TextAcquirer
	extractor FieldExtractor
	validator RecordValidator
	observer  Observer
	logger    *slog.Logger
}

type Option func(*Parser)

func WithObserver(o Observer) Option {
	return func(p *Parser) {
		if o != nil {
			p.observer = o
		}
	}
}

func NewParser(acq TextAcquirer, ex FieldExtractor, val RecordValidator, logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{acquirer: acq, extractor: ex, validator: val, logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ParseDocument returns the validated record for content, or a *Error.
func (p *Parser) ParseDocument(ctx context.Context, content []byte, filename string) (receipt.Record, error) {
	res, err := p.Parse(ctx, content, filename)
	if err != nil {
		return receipt.Record{}, err
	}
	return res.Record, nil
}

// Parse is ParseDocument with the intermediate text and fields kept.
func (p *Parser) Parse(ctx context.Context, content []byte, filename string) (res Result, err error) {
	start := time.Now()
	logger := p.logger.With("file_name", filename)
	if id := common.TraceID(ctx); id != "" {
		logger = logger.With("trace_id", id)
	}
	defer func() {
		out := Outcome{FileType: res.FileType, Source: res.Text.Source, Duration: time.Since(start), Err: err}
		var pe *Error
		if errors.As(err, &pe) {
			out.Kind, out.Reason = pe.Kind, pe.Reason
		}
		if p.observer != nil {
			p.observer.ObserveParse(out)
		}
	}()

	ft, err := ingest.Classify(filename)
	if err != nil {
		logger.Warn("unsupported file type", "error", err)
		return res, &Error{Kind: KindUnsupportedFileType, Stage: StageClassify, Filename: filename, Cause: err}
	}
	res.FileType = ft

	text, err := p.acquirer.Acquire(ctx, content, ft)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ocr.ErrAcquisition) {
			return res, fmt.Errorf("parse %q: %w", filename, ctxErr)
		}
		reason, _ := ocr.ReasonOf(err)
		logger.Warn("text acquisition failed", "file_type", ft, "reason", reason, "error", err)
		return res, &Error{Kind: KindAcquisition, Stage: StageAcquire, Filename: filename, Reason: reason, Cause: err}
	}
	res.Text = text

	res.Fields = p.extractor.Extract(text.Text)

	rec, err := p.validator.Validate(res.Fields)
	if err != nil {
		if !errors.Is(err, common.ErrValidation) {
			return res, fmt.Errorf("parse %q: validate: %w", filename, err)
		}
		var ve common.ValidationErrors
		errors.As(err, &ve)
		logger.Info("extracted fields failed validation", "source", text.Source, "fields", ve.Fields())
		return res, &Error{Kind: KindValidation, Stage: StageValidate, Filename: filename, Cause: err}
	}
	res.Record = rec

	logger.Info("document parsed",
		"file_type", ft,
		"source", text.Source,
		"language", text.Language,
		"vendor", rec.VendorName(),
		"amount", rec.FormattedAmount(),
		"currency", rec.Currency(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

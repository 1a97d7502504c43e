package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/joseph-ayodele/receipt-parser/constants"
)

// PDFDocument is the subset of a PDF backend the extractor needs.
type PDFDocument interface {
	NumPage() int
	Text(pageNumber int) (string, error)
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

// PDFOpener opens a PDF held in memory.
type PDFOpener interface {
	Open(content []byte) (PDFDocument, error)
}

type fitzOpener struct{}

func (fitzOpener) Open(content []byte) (PDFDocument, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (e *Extractor) acquirePDF(ctx context.Context, content []byte) (ExtractedText, error) {
	doc, err := e.pdf.Open(content)
	if err != nil {
		return ExtractedText{}, acqErr(ReasonDecodeError, "PDF could not be opened", err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			e.logger.Warn("failed to close pdf", "error", err)
		}
	}()

	pages := doc.NumPage()
	var warns []string
	var b strings.Builder
	for i := 0; i < pages; i++ {
		txt, err := doc.Text(i)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
	}

	if text := Normalize(b.String()); text != "" {
		return ExtractedText{
			Text:     text,
			Source:   constants.SourceDirectPdfLayer,
			Pages:    pages,
			Warnings: warns,
		}, nil
	}

	if !e.cfg.PDFRasterFallback {
		return ExtractedText{Pages: pages, Warnings: warns}, acqErr(ReasonNoSelectableText, msgPDFNoText, nil)
	}

	e.logger.Info("pdf has no text layer, rasterizing for ocr", "pages", pages, "dpi", e.cfg.DPI)
	return e.ocrPDFPages(ctx, doc, pages, warns)
}

func (e *Extractor) ocrPDFPages(ctx context.Context, doc PDFDocument, pages int, warns []string) (ExtractedText, error) {
	limit := pages
	if e.cfg.MaxPages > 0 && limit > e.cfg.MaxPages {
		limit = e.cfg.MaxPages
		warns = append(warns, fmt.Sprintf("only the first %d of %d pages were recognized", limit, pages))
	}

	var b strings.Builder
	var lang string
	var lastErr error
	for i := 0; i < limit; i++ {
		img, err := doc.ImageDPI(i, float64(e.cfg.DPI))
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: render: %v", i+1, err))
			continue
		}
		txt, l, err := e.ocrImage(ctx, img)
		if err != nil {
			var ae *AcquisitionError
			if errors.As(err, &ae) && ae.Reason == ReasonEngineUnavailable {
				return ExtractedText{Pages: pages, Warnings: warns}, err
			}
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			lastErr = err
			continue
		}
		if lang == "" {
			lang = l
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
	}

	text := Normalize(b.String())
	if text == "" && lastErr != nil {
		return ExtractedText{Pages: pages, Warnings: warns}, lastErr
	}
	return ExtractedText{
		Text:     text,
		Source:   constants.SourceOCR,
		Language: lang,
		Pages:    pages,
		Warnings: warns,
	}, nil
}

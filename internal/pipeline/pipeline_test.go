package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/extract"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
	"github.com/joseph-ayodele/receipt-parser/internal/receipt"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

const sampleText = "Total: $100.00\nDate: 2023-01-15\nVendor: TestShop\n"

type stubRunner struct {
	mu    sync.Mutex
	calls int
	out   string
	err   error
}

func (r *stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for i, a := range args {
		if a == "--psm" && i+1 < len(args) && args[i+1] == "0" {
			return []byte("Script: Latin\n"), nil, r.err
		}
	}
	return []byte(r.out), nil, r.err
}

func (r *stubRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

type blankPDF struct{ pages int }

func (d blankPDF) NumPage() int { return d.pages }

func (d blankPDF) Text(int) (string, error) { return "", nil }

func (d blankPDF) Close() error { return nil }

func (d blankPDF) ImageDPI(int, float64) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img, nil
}

type blankOpener struct{ pages int }

func (o blankOpener) Open([]byte) (ocr.PDFDocument, error) { return blankPDF{pages: o.pages}, nil }

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (o *recordingObserver) ObserveParse(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
}

func (o *recordingObserver) last() Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[len(o.outcomes)-1]
}

func newTestParser(t *testing.T, r *stubRunner, obs Observer) *Parser {
	t.Helper()
	acq := ocr.NewExtractor(ocr.Config{PDFRasterFallback: true}, nil,
		ocr.WithRunner(r), ocr.WithPDFOpener(blankOpener{pages: 1}))
	ex := extract.NewExtractor(extract.Config{}, nil)
	val, err := receipt.NewValidator("USD", nil)
	require.NoError(t, err)
	return NewParser(acq, ex, val, nil, WithObserver(obs))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 60, 40))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pipelineErr(t *testing.T, err error) *Error {
	t.Helper()
	require.Error(t, err)
	var pe *Error
	require.True(t, errors.As(err, &pe), "expected *pipeline.Error, got %T", err)
	return pe
}

func TestParseDocumentText(t *testing.T) {
	obs := &recordingObserver{}
	p := newTestParser(t, &stubRunner{}, obs)

	rec, err := p.ParseDocument(context.Background(), []byte(sampleText), "receipt.TXT")
	require.NoError(t, err)
	assert.Equal(t, "Testshop", rec.VendorName())
	assert.Equal(t, "2023-01-15", rec.TransactionDate().Format("2006-01-02"))
	assert.True(t, decimal.RequireFromString("100").Equal(rec.Amount()))
	assert.Equal(t, "USD", rec.Currency())

	out := obs.last()
	assert.Equal(t, constants.TEXT, out.FileType)
	assert.Equal(t, constants.SourceDirectDecode, out.Source)
	assert.Empty(t, out.Kind)
	assert.NoError(t, out.Err)
}

func TestParseDocumentUnsupportedSkipsAcquisition(t *testing.T) {
	r := &stubRunner{out: sampleText}
	obs := &recordingObserver{}
	p := newTestParser(t, r, obs)

	for _, name := range []string{"file.docx", "noext", ".pdf"} {
		_, err := p.ParseDocument(context.Background(), []byte(sampleText), name)
		pe := pipelineErr(t, err)
		assert.Equal(t, KindUnsupportedFileType, pe.Kind, name)
		assert.Equal(t, StageClassify, pe.Stage, name)
		assert.True(t, errors.Is(err, ingest.ErrUnsupportedFileType), name)
		assert.Equal(t, codes.InvalidArgument, pe.GRPCStatus().Code(), name)
	}
	assert.Zero(t, r.count())
	assert.Equal(t, KindUnsupportedFileType, obs.last().Kind)

	_, err := p.ParseDocument(context.Background(), nil, "file.docx")
	assert.Contains(t, pipelineErr(t, err).UserMessage(), `"docx"`)
}

func TestParseDocumentTextlessPDFUsesOCR(t *testing.T) {
	r := &stubRunner{out: sampleText}
	p := newTestParser(t, r, nil)

	res, err := p.Parse(context.Background(), []byte("%PDF-1.4"), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.SourceOCR, res.Text.Source)
	assert.Equal(t, "eng", res.Text.Language)
	assert.Equal(t, "Testshop", res.Record.VendorName())
	assert.Positive(t, r.count())
}

func TestParseDocumentEngineUnavailable(t *testing.T) {
	r := &stubRunner{err: exec.ErrNotFound}
	p := newTestParser(t, r, nil)

	_, err := p.ParseDocument(context.Background(), pngBytes(t), "photo.png")
	pe := pipelineErr(t, err)
	assert.Equal(t, KindAcquisition, pe.Kind)
	assert.Equal(t, ocr.ReasonEngineUnavailable, pe.Reason)
	assert.True(t, errors.Is(err, ocr.ErrAcquisition))
	assert.Contains(t, pe.UserMessage(), "install the OCR engine")
	assert.Equal(t, codes.Unavailable, pe.GRPCStatus().Code())
}

func TestParseDocumentRecognitionFailure(t *testing.T) {
	r := &stubRunner{err: errors.New("exit status 1")}
	p := newTestParser(t, r, nil)

	_, err := p.ParseDocument(context.Background(), pngBytes(t), "photo.jpg.png")
	pe := pipelineErr(t, err)
	assert.Equal(t, ocr.ReasonOcrError, pe.Reason)
	assert.Contains(t, pe.UserMessage(), "recognition failed on this image")
	assert.Equal(t, codes.Internal, pe.GRPCStatus().Code())
}

func TestParseDocumentDecodeAndEmpty(t *testing.T) {
	p := newTestParser(t, &stubRunner{}, nil)

	_, err := p.ParseDocument(context.Background(), []byte("not an image"), "broken.jpg")
	assert.Equal(t, ocr.ReasonDecodeError, pipelineErr(t, err).Reason)

	_, err = p.ParseDocument(context.Background(), []byte("  \n\t "), "blank.txt")
	pe := pipelineErr(t, err)
	assert.Equal(t, ocr.ReasonEmptyText, pe.Reason)
	assert.Equal(t, codes.InvalidArgument, pe.GRPCStatus().Code())

	_, err = p.ParseDocument(context.Background(), []byte("%PDF"), "blank.pdf")
	pe = pipelineErr(t, err)
	assert.Equal(t, ocr.ReasonEmptyText, pe.Reason)
	assert.Contains(t, pe.UserMessage(), "rescan as image")
}

func TestParseDocumentValidationFailure(t *testing.T) {
	p := newTestParser(t, &stubRunner{}, nil)

	_, err := p.ParseDocument(context.Background(), []byte("hello world\nnothing useful here"), "note.txt")
	pe := pipelineErr(t, err)
	assert.Equal(t, KindValidation, pe.Kind)
	assert.Equal(t, StageValidate, pe.Stage)
	assert.True(t, errors.Is(err, common.ErrValidation))

	var ve common.ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Has(receipt.FieldAmount))
	assert.True(t, ve.Has(receipt.FieldTransactionDate))
	assert.Contains(t, pe.UserMessage(), "amount")
	assert.Equal(t, codes.InvalidArgument, pe.GRPCStatus().Code())
}

func TestParseDocumentIdempotent(t *testing.T) {
	p := newTestParser(t, &stubRunner{}, nil)
	content := []byte("FRESH MART\nDate: 05/02/2023\nGrand Total: €1.234,56\nCategory: groceries\n")

	first, err := p.ParseDocument(context.Background(), content, "a.txt")
	require.NoError(t, err)
	second, err := p.ParseDocument(context.Background(), content, "a.txt")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.True(t, decimal.RequireFromString("1234.56").Equal(first.Amount()))
	assert.Equal(t, "EUR", first.Currency())
	assert.Equal(t, "Groceries", first.CategoryName())
}

func TestProcessorStoresRecordAndJob(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := ingest.OpenLocalStore(filepath.Join(dir, "landing"), filepath.Join(dir, "landing.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	db, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite, DSN: filepath.Join(dir, "r.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	owner, err := repository.NewOwnerRepository(db, nil).GetOrCreateByName(ctx, "alice", "USD")
	require.NoError(t, err)
	receipts := repository.NewReceiptRepository(db, nil)
	jobs := repository.NewParseJobRepository(db, nil)
	proc := NewProcessor(newTestParser(t, &stubRunner{}, nil), store, receipts, jobs, nil)

	land := func(content, name string) ingest.IngestionResult {
		sf, err := store.Save(ctx, []byte(content), name)
		require.NoError(t, err)
		return ingest.IngestionResult{Location: sf.Location, OriginalFilename: name, HashHex: sf.HashHex}
	}

	ok, err := proc.ProcessFile(ctx, owner.ID, land(sampleText, "shop.txt"))
	require.NoError(t, err)
	require.NotNil(t, ok.Receipt)
	assert.Equal(t, "Testshop", ok.Receipt.VendorName)
	assert.Equal(t, "shop.txt", ok.Receipt.OriginalFilename)

	job, err := jobs.GetByID(ctx, ok.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusParsed), job.Status)
	require.NotNil(t, job.ReceiptID)
	assert.Equal(t, ok.Receipt.ID, *job.ReceiptID)

	bad, err := proc.ProcessFile(ctx, owner.ID, land("just words", "note.txt"))
	assert.Equal(t, KindValidation, pipelineErr(t, err).Kind)
	assert.Nil(t, bad.Receipt)
	assert.NotEqual(t, uuid.Nil, bad.JobID)

	job, err = jobs.GetByID(ctx, bad.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), job.Status)
	require.NotNil(t, job.FailureKind)
	assert.Equal(t, string(KindValidation), *job.FailureKind)

	stored, err := receipts.ListReceipts(ctx, owner.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestProcessorRecordsFailureAfterDeadline(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := ingest.OpenLocalStore(filepath.Join(dir, "landing"), filepath.Join(dir, "landing.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	db, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite, DSN: filepath.Join(dir, "r.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	owner, err := repository.NewOwnerRepository(db, nil).GetOrCreateByName(ctx, "bob", "USD")
	require.NoError(t, err)
	jobs := repository.NewParseJobRepository(db, nil)

	acq := ocr.NewExtractor(ocr.Config{}, nil, ocr.WithRunner(blockingRunner{}))
	val, err := receipt.NewValidator("USD", nil)
	require.NoError(t, err)
	parser := NewParser(acq, extract.NewExtractor(extract.Config{}, nil), val, nil)
	proc := NewProcessor(parser, store, repository.NewReceiptRepository(db, nil), jobs, nil)

	sf, err := store.Save(ctx, pngBytes(t), "scan.png")
	require.NoError(t, err)

	jobCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	res, err := proc.ProcessFile(jobCtx, owner.ID, ingest.IngestionResult{
		Location: sf.Location, OriginalFilename: "scan.png", HashHex: sf.HashHex,
	})
	assert.Equal(t, KindAcquisition, pipelineErr(t, err).Kind)
	require.Error(t, jobCtx.Err())

	job, err := jobs.GetByID(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), job.Status)
	assert.NotNil(t, job.FinishedAt)
	require.NotNil(t, job.FailureKind)
	assert.Equal(t, string(KindAcquisition), *job.FailureKind)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

// ProcessResult is what ProcessFile produced for one landed file.
type ProcessResult struct {
	JobID   uuid.UUID
	Receipt *entity.Receipt
}

// Processor reads landed files, parses them and stores the records,
// logging every attempt as a parse job.
type Processor struct {
	parser   *Parser
	landing  ingest.Landing
	receipts repository.ReceiptRepository
	jobs     repository.ParseJobRepository
	logger   *slog.Logger
}

func NewProcessor(
	parser *Parser,
	landing ingest.Landing,
	receipts repository.ReceiptRepository,
	jobs repository.ParseJobRepository,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{parser: parser, landing: landing, receipts: receipts, jobs: jobs, logger: logger}
}

// ProcessFile runs the pipeline on a landed file for ownerID. Parse failures
// are recorded on the job and returned; the job ID is valid whenever a job was started.
func (p *Processor) ProcessFile(ctx context.Context, ownerID uuid.UUID, file ingest.IngestionResult) (ProcessResult, error) {
	job, err := p.jobs.Start(ctx, repository.StartJobRequest{
		OwnerID:      ownerID,
		Filename:     file.OriginalFilename,
		FileLocation: file.Location,
		ContentHash:  file.HashHex,
	})
	if err != nil {
		return ProcessResult{}, fmt.Errorf("start job: %w", err)
	}
	out := ProcessResult{JobID: job.ID}

	content, err := p.landing.Read(ctx, file.Location)
	if err != nil {
		p.fail(ctx, job.ID, repository.JobFailure{Kind: "ReadFailure", Message: err.Error()})
		return out, fmt.Errorf("read landed file: %w", err)
	}

	res, err := p.parser.Parse(ctx, content, file.OriginalFilename)
	if err != nil {
		failure := repository.JobFailure{Message: err.Error()}
		var pe *Error
		if errors.As(err, &pe) {
			failure.Kind, failure.Reason, failure.Message = string(pe.Kind), string(pe.Reason), pe.UserMessage()
		}
		p.fail(ctx, job.ID, failure)
		return out, err
	}

	rec, err := p.receipts.Save(ctx, repository.SaveReceiptRequest{
		OwnerID:          ownerID,
		Record:           res.Record,
		OriginalFilename: file.OriginalFilename,
		FileLocation:     file.Location,
	})
	if err != nil {
		p.fail(ctx, job.ID, repository.JobFailure{Kind: "StorageFailure", Message: err.Error()})
		return out, fmt.Errorf("save receipt: %w", err)
	}
	out.Receipt = rec

	jctx, cancel := jobWriteContext(ctx)
	defer cancel()
	if err := p.jobs.FinishSuccess(jctx, job.ID, repository.JobSuccess{
		ReceiptID:  rec.ID,
		TextSource: string(res.Text.Source),
		Language:   res.Text.Language,
	}); err != nil {
		return out, fmt.Errorf("finish job: %w", err)
	}

	p.logger.Debug("processed file", "job_id", job.ID, "receipt_id", rec.ID, "file_name", file.OriginalFilename)
	return out, nil
}

// jobWriteTimeout bounds the final job update, which runs even when the
// parse context has already expired.
const jobWriteTimeout = 5 * time.Second

func jobWriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), jobWriteTimeout)
}

func (p *Processor) fail(ctx context.Context, jobID uuid.UUID, f repository.JobFailure) {
	ctx, cancel := jobWriteContext(ctx)
	defer cancel()
	if err := p.jobs.FinishFailure(ctx, jobID, f); err != nil {
		p.logger.Error("failed to record job failure", "job_id", jobID, "error", err)
	}
}

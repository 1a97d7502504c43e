package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
)

type StartJobRequest struct {
	OwnerID      uuid.UUID
	Filename     string
	FileLocation string
	ContentHash  string
}

type JobSuccess struct {
	ReceiptID  uuid.UUID
	TextSource string
	Language   string
}

type JobFailure struct {
	Kind    string
	Reason  string
	Message string
}

type ParseJobRepository interface {
	Start(ctx context.Context, req StartJobRequest) (*entity.ParseJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, out JobSuccess) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, out JobFailure) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ParseJob, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, status constants.JobStatus) ([]*entity.ParseJob, error)
}

type parseJobRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewParseJobRepository(db *DB, logger *slog.Logger) ParseJobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &parseJobRepository{db: db, logger: logger}
}

var jobColumns = []string{
	"id", "owner_id", "receipt_id", "filename", "file_location", "content_hash", "status",
	"text_source", "language", "failure_kind", "failure_reason", "error_message", "started_at", "finished_at",
}

func (r *parseJobRepository) Start(ctx context.Context, req StartJobRequest) (*entity.ParseJob, error) {
	job := &entity.ParseJob{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		Filename:     req.Filename,
		FileLocation: req.FileLocation,
		ContentHash:  req.ContentHash,
		Status:       string(constants.JobStatusRunning),
		StartedAt:    time.Now().UTC(),
	}
	q, args, err := r.db.sb.Insert("parse_jobs").
		Columns("id", "owner_id", "filename", "file_location", "content_hash", "status", "started_at").
		Values(job.ID.String(), job.OwnerID.String(), job.Filename, job.FileLocation, job.ContentHash, job.Status, job.StartedAt).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.SQL.ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to start parse job", "file_name", req.Filename, "error", err)
		return nil, fmt.Errorf("%w: start parse job: %v", common.ErrDatabase, err)
	}
	r.logger.Debug("parse job started", "job_id", job.ID, "file_name", job.Filename)
	return job, nil
}

func (r *parseJobRepository) FinishSuccess(ctx context.Context, jobID uuid.UUID, out JobSuccess) error {
	return r.finish(ctx, jobID, sq.Eq{
		"status":      string(constants.JobStatusParsed),
		"receipt_id":  out.ReceiptID.String(),
		"text_source": nullString(out.TextSource),
		"language":    nullString(out.Language),
	})
}

func (r *parseJobRepository) FinishFailure(ctx context.Context, jobID uuid.UUID, out JobFailure) error {
	return r.finish(ctx, jobID, sq.Eq{
		"status":         string(constants.JobStatusFailed),
		"failure_kind":   nullString(out.Kind),
		"failure_reason": nullString(out.Reason),
		"error_message":  nullString(out.Message),
	})
}

func (r *parseJobRepository) finish(ctx context.Context, jobID uuid.UUID, set sq.Eq) error {
	set["finished_at"] = time.Now().UTC()
	q, args, err := r.db.sb.Update("parse_jobs").SetMap(set).Where(sq.Eq{"id": jobID.String()}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.SQL.ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to finish parse job", "job_id", jobID, "error", err)
		return fmt.Errorf("%w: finish parse job: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", "parse job "+jobID.String(), common.ErrNotFound)
	}
	return nil
}

func (r *parseJobRepository) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ParseJob, error) {
	jobs, err := r.query(ctx, r.db.sb.Select(jobColumns...).From("parse_jobs").Where(sq.Eq{"id": jobID.String()}).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.NewAppError("NOT_FOUND", "parse job "+jobID.String(), common.ErrNotFound)
	}
	return jobs[0], nil
}

// ListByOwner returns the owner's jobs, newest first. An empty status lists all.
func (r *parseJobRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, status constants.JobStatus) ([]*entity.ParseJob, error) {
	b := r.db.sb.Select(jobColumns...).From("parse_jobs").Where(sq.Eq{"owner_id": ownerID.String()})
	if status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	return r.query(ctx, b.OrderBy("started_at DESC"))
}

func (r *parseJobRepository) query(ctx context.Context, b sq.SelectBuilder) ([]*entity.ParseJob, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query parse jobs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.ParseJob
	for rows.Next() {
		var (
			job                                 entity.ParseJob
			receiptID                           uuid.NullUUID
			source, lang, kind, reason, message sql.NullString
			finished                            sql.NullTime
		)
		if err := rows.Scan(&job.ID, &job.OwnerID, &receiptID, &job.Filename, &job.FileLocation, &job.ContentHash,
			&job.Status, &source, &lang, &kind, &reason, &message, &job.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan parse job: %w", err)
		}
		if receiptID.Valid {
			id := receiptID.UUID
			job.ReceiptID = &id
		}
		job.TextSource = stringPtr(source)
		job.Language = stringPtr(lang)
		job.FailureKind = stringPtr(kind)
		job.FailureReason = stringPtr(reason)
		job.ErrorMessage = stringPtr(message)
		if finished.Valid {
			t := finished.Time
			job.FinishedAt = &t
		}
		out = append(out, &job)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: iterate parse jobs: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

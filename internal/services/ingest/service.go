package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/receipt-parser/internal/async"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	fsingest "github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

// Observer is told about every landed file.
type Observer interface {
	ObserveIngest(deduplicated bool)
}

// Service lands files for an owner and queues them for parsing.
type Service struct {
	ingestor fsingest.Ingestor
	owners   repository.OwnerRepository
	queue    async.Queue
	observer Observer
	logger   *slog.Logger
}

type Option func(*Service)

// WithObserver reports landed files to o.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates a new ingest service.
func NewService(ing fsingest.Ingestor, owners repository.OwnerRepository, q async.Queue, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{ingestor: ing, owners: owners, queue: q, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FileIngestRequest represents file ingestion parameters.
type FileIngestRequest struct {
	OwnerID string
	Path    string
	// SkipDuplicates leaves files whose bytes were landed before out of the queue.
	SkipDuplicates bool
}

// FileIngestResult is the landed file and whether it was queued.
type FileIngestResult struct {
	File   fsingest.IngestionResult
	Queued bool
}

// IngestFile lands a single file and queues it for parsing.
func (s *Service) IngestFile(ctx context.Context, req FileIngestRequest) (FileIngestResult, error) {
	ownerID, err := s.ownerID(ctx, req.OwnerID)
	if err != nil {
		return FileIngestResult{}, err
	}

	path := strings.TrimSpace(req.Path)
	if path == "" {
		s.logger.Error("ingest request missing path", "owner_id", ownerID)
		return FileIngestResult{}, status.Error(codes.InvalidArgument, "path is required")
	}

	s.logger.Info("starting file ingest", "owner_id", ownerID, "path", path)
	r, err := s.ingestor.IngestPath(ctx, path)
	if err != nil {
		if errors.Is(err, fsingest.ErrUnsupportedFileType) {
			return FileIngestResult{}, status.Errorf(codes.InvalidArgument, "ingest: %v", err)
		}
		return FileIngestResult{}, status.Errorf(codes.Internal, "ingest: %v", err)
	}
	s.logger.Info("file ingest succeeded", "owner_id", ownerID, "location", r.Location, "deduplicated", r.Deduplicated)

	queued, err := s.enqueue(ctx, ownerID, r, req.SkipDuplicates)
	if err != nil {
		return FileIngestResult{File: r}, err
	}
	return FileIngestResult{File: r, Queued: queued}, nil
}

// DirectoryIngestRequest represents directory ingestion parameters.
type DirectoryIngestRequest struct {
	OwnerID        string
	RootPath       string
	SkipHidden     bool
	SkipDuplicates bool
}

// DirectoryIngestResult represents directory ingestion results.
type DirectoryIngestResult struct {
	Statistics fsingest.DirStats
	Results    []fsingest.IngestionResult
	Queued     int
}

// IngestDirectory lands all accepted files under a directory and queues them.
func (s *Service) IngestDirectory(ctx context.Context, req DirectoryIngestRequest) (*DirectoryIngestResult, error) {
	ownerID, err := s.ownerID(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	root := strings.TrimSpace(req.RootPath)
	if root == "" {
		s.logger.Error("ingest directory request missing root_path", "owner_id", ownerID)
		return nil, status.Error(codes.InvalidArgument, "root_path is required")
	}

	s.logger.Info("starting directory ingest", "owner_id", ownerID, "root", root, "skip_hidden", req.SkipHidden)
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, req.SkipHidden)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "ingest directory: %v", err)
	}
	s.logger.Info("directory ingest completed", "owner_id", ownerID, "scanned", stats.Scanned, "matched", stats.Matched, "succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)

	out := &DirectoryIngestResult{Statistics: stats, Results: results}
	for _, r := range results {
		if r.Err != "" {
			continue
		}
		queued, err := s.enqueue(ctx, ownerID, r, req.SkipDuplicates)
		if err != nil {
			return out, err
		}
		if queued {
			out.Queued++
		}
	}
	return out, nil
}

func (s *Service) enqueue(ctx context.Context, ownerID uuid.UUID, r fsingest.IngestionResult, skipDuplicates bool) (bool, error) {
	if s.observer != nil {
		s.observer.ObserveIngest(r.Deduplicated)
	}
	if r.Deduplicated && skipDuplicates {
		s.logger.Info("skipping processing (duplicate)", "path", r.SourcePath, "location", r.Location)
		return false, nil
	}

	job := async.Job{OwnerID: ownerID, File: r, SubmittedAt: time.Now(), TraceID: r.HashHex}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("enqueue failed for file", "path", r.SourcePath, "error", err)
		if errors.Is(err, async.ErrQueueClosed) {
			return false, status.Error(codes.Unavailable, "queue is shutting down")
		}
		return false, status.Errorf(codes.Internal, "enqueue failed: %v", err)
	}
	return true, nil
}

func (s *Service) ownerID(ctx context.Context, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		s.logger.Error("invalid owner_id format for ingest", "owner_id", raw, "error", err)
		return uuid.Nil, status.Error(codes.InvalidArgument, "owner_id must be a UUID")
	}
	if _, err := s.owners.GetByID(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Error("owner not found for ingest", "owner_id", id)
			return uuid.Nil, status.Error(codes.NotFound, "owner not found")
		}
		return uuid.Nil, common.ToStatus(err)
	}
	return id, nil
}

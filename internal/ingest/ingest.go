package ingest

import (
	"context"
	"time"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath       string
	Location         string
	OriginalFilename string
	Deduplicated     bool
	HashHex          string
	FileExt          string
	StoredAt         time.Time
	Err              string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the batch and watch commands depend on.
type Ingestor interface {
	// IngestPath lands a single file.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory lands all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}

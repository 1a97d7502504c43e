package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
)

// Job is one landed file waiting to be parsed for an owner.
type Job struct {
	OwnerID     uuid.UUID
	File        ingest.IngestionResult
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

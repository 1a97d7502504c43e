package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/pipeline"
)

var (
	_ Queue         = (*ProcessorQueue)(nil)
	_ FileProcessor = (*pipeline.Processor)(nil)
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// FileProcessor runs the pipeline for one landed file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, ownerID uuid.UUID, file ingest.IngestionResult) (pipeline.ProcessResult, error)
}

// ResultFunc is called from a worker after each job.
type ResultFunc func(job Job, res pipeline.ProcessResult, err error)

// Hooks lets callers track jobs in flight.
type Hooks interface {
	JobStarted()
	JobFinished()
}

// ProcessorQueue runs jobs on a fixed set of workers. Jobs are independent;
// workers share nothing but the processor.
type ProcessorQueue struct {
	proc     FileProcessor
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onResult ResultFunc
	hooks    Hooks

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithOnResult(fn ResultFunc) Option {
	return func(q *ProcessorQueue) { q.onResult = fn }
}

func WithHooks(h Hooks) Option {
	return func(q *ProcessorQueue) { q.hooks = h }
}

func NewProcessorQueue(proc FileProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.work(i + 1)
		}
	})
}

func (q *ProcessorQueue) work(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("worker started", "worker_id", workerID)

	for job := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		ctx = common.WithTraceID(ctx, job.TraceID)
		res, err := q.proc.ProcessFile(ctx, job.OwnerID, job.File)
		cancel()

		if err != nil {
			q.logger.Error("processing failed", "worker_id", workerID, "file_name", job.File.OriginalFilename, "job_id", res.JobID, "error", err)
		} else {
			q.logger.Info("processed file successfully", "worker_id", workerID, "file_name", job.File.OriginalFilename, "job_id", res.JobID)
		}
		if q.onResult != nil {
			q.onResult(job, res, err)
		}
		if q.hooks != nil {
			q.hooks.JobFinished()
		}
	}

	q.logger.Debug("worker stopped", "worker_id", workerID)
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "file_name", job.File.OriginalFilename)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if q.hooks != nil {
		q.hooks.JobStarted()
	}

	select {
	case q.ch <- job:
		q.logger.Debug("queued file for processing", "file_name", job.File.OriginalFilename)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "file_name", job.File.OriginalFilename)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		if q.hooks != nil {
			q.hooks.JobFinished()
		}
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
	"github.com/joseph-ayodele/receipt-parser/internal/pipeline"
)

type fakeProcessor struct {
	block   chan struct{}
	calls   atomic.Int32
	traceMu sync.Mutex
	traces  []string
}

func (f *fakeProcessor) ProcessFile(ctx context.Context, _ uuid.UUID, file ingest.IngestionResult) (pipeline.ProcessResult, error) {
	f.calls.Add(1)
	f.traceMu.Lock()
	f.traces = append(f.traces, common.TraceID(ctx))
	f.traceMu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if file.OriginalFilename == "bad.txt" {
		return pipeline.ProcessResult{JobID: uuid.New()}, errors.New("boom")
	}
	return pipeline.ProcessResult{JobID: uuid.New()}, nil
}

type counter struct {
	started, finished atomic.Int32
}

func (c *counter) JobStarted()  { c.started.Add(1) }
func (c *counter) JobFinished() { c.finished.Add(1) }

func job(name string) Job {
	return Job{OwnerID: uuid.New(), File: ingest.IngestionResult{OriginalFilename: name}, TraceID: "trace-" + name}
}

func TestProcessorQueueRunsAllJobs(t *testing.T) {
	proc := &fakeProcessor{}
	hooks := &counter{}

	var mu sync.Mutex
	results := map[string]error{}
	q := NewProcessorQueue(proc, nil,
		WithWorkers(3),
		WithQueueSize(2),
		WithHooks(hooks),
		WithOnResult(func(j Job, _ pipeline.ProcessResult, err error) {
			mu.Lock()
			defer mu.Unlock()
			results[j.File.OriginalFilename] = err
		}),
	)

	names := []string{"a.txt", "b.txt", "bad.txt", "c.txt", "d.txt", "e.txt"}
	for _, n := range names {
		require.NoError(t, q.Enqueue(context.Background(), job(n)))
	}
	q.Shutdown(context.Background())

	assert.Equal(t, int32(len(names)), proc.calls.Load())
	require.Len(t, results, len(names))
	assert.Error(t, results["bad.txt"])
	assert.NoError(t, results["a.txt"])
	assert.Equal(t, int32(len(names)), hooks.started.Load())
	assert.Equal(t, int32(len(names)), hooks.finished.Load())
	assert.Contains(t, proc.traces, "trace-c.txt")

	err := q.Enqueue(context.Background(), job("late.txt"))
	assert.ErrorIs(t, err, ErrQueueClosed)
	q.Shutdown(context.Background())
}

func TestProcessorQueueBackpressureHonorsContext(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	hooks := &counter{}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1), WithHooks(hooks))

	require.NoError(t, q.Enqueue(context.Background(), job("one.txt")))
	require.NoError(t, q.Enqueue(context.Background(), job("two.txt")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, job("three.txt"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(proc.block)
	q.Shutdown(context.Background())
	assert.Equal(t, int32(2), proc.calls.Load())
	assert.Equal(t, hooks.started.Load(), hooks.finished.Load())
}

func TestProcessorQueueShutdownRespectsContext(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), job("slow.txt")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	q.Shutdown(ctx)
	assert.Less(t, time.Since(start), time.Second)

	close(proc.block)
}

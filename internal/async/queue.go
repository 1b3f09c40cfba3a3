// Package async runs uploads through the processor on a bounded worker pool.
// Used by batch ingestion; the HTTP boundary processes uploads inline.
package async

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oluwaseun-a/po-tracker/internal/entity"
	"github.com/oluwaseun-a/po-tracker/internal/pipeline"
)

// Job is one document to ingest.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Result pairs a job with its outcome.
type Result struct {
	Job   Job
	Order *entity.PurchaseOrder
	Err   error
}

type Queue struct {
	proc    *pipeline.Processor
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewQueue starts `workers` goroutines draining the job channel.
func NewQueue(proc *pipeline.Processor, workers, buffer int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 4
	}
	if buffer < 0 {
		buffer = 0
	}
	q := &Queue{
		proc:    proc,
		jobs:    make(chan Job, buffer),
		results: make(chan Result, buffer),
		logger:  logger,
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker(i)
	}
	go func() {
		q.wg.Wait()
		close(q.results)
	}()
	return q
}

// Enqueue submits a job, honoring context cancellation while the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if job.TraceID == "" {
		job.TraceID = uuid.New().String()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results is closed after Shutdown once all workers drain.
func (q *Queue) Results() <-chan Result {
	return q.results
}

// Shutdown stops intake and waits for in-flight jobs, bounded by ctx.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.closeOnce.Do(func() { close(q.jobs) })
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("shutdown timed out with jobs still in flight")
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.logger.Debug("async.job.start", "worker", id, "trace_id", job.TraceID, "path", job.Path)

		data, err := os.ReadFile(job.Path)
		if err != nil {
			q.results <- Result{Job: job, Err: err}
			continue
		}
		po, err := q.proc.Process(context.Background(), pipeline.Upload{
			Data:     data,
			Filename: filepath.Base(job.Path),
		})
		q.results <- Result{Job: job, Order: po, Err: err}
	}
}

package async

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/tradedocs/constants"
	"github.com/joseph-ayodele/tradedocs/internal/common"
	"github.com/joseph-ayodele/tradedocs/internal/extract"
	"github.com/joseph-ayodele/tradedocs/internal/pipeline"
)

// Runner runs one document through the validation pipeline.
type Runner interface {
	Run(ctx context.Context, req extract.Request) (pipeline.Result, error)
}

// Sink receives the outcome of every job. err is non-nil when the job failed
// before a Result could be produced.
type Sink interface {
	Done(ctx context.Context, job Job, status constants.JobStatus, res pipeline.Result, err error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, job Job, status constants.JobStatus, res pipeline.Result, err error)

func (f SinkFunc) Done(ctx context.Context, job Job, status constants.JobStatus, res pipeline.Result, err error) {
	f(ctx, job, status, res, err)
}

// ProcessorQueue is a bounded worker pool; each worker runs one document at a time.
type ProcessorQueue struct {
	runner  Runner
	sink    Sink
	logger  *slog.Logger
	workers int
	timeout time.Duration

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

func WithSink(s Sink) Option {
	return func(q *ProcessorQueue) {
		if s != nil {
			q.sink = s
		}
	}
}

func NewProcessorQueue(runner Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		runner:  runner,
		logger:  logger,
		workers: 2,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 256),
	}
	q.sink = SinkFunc(func(context.Context, Job, constants.JobStatus, pipeline.Result, error) {})
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
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}
	ctx = common.WithDocumentID(ctx, job.ID)

	req, err := LoadRequest(job.Path, job.DocType)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "error", err)
		q.sink.Done(ctx, job, constants.JobStatusFailed, pipeline.Result{}, err)
		return
	}

	res, err := q.runner.Run(ctx, req)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "error", err)
		q.sink.Done(ctx, job, constants.JobStatusFailed, res, err)
		return
	}
	q.logger.Info("processed document",
		"worker_id", workerID,
		"path", job.Path,
		"degraded", res.Degraded,
		"elapsed_ms", res.ElapsedMS,
	)
	q.sink.Done(ctx, job, constants.JobStatusValidated, res, nil)
}

// LoadRequest reads a document from disk and infers its MIME type from the extension.
func LoadRequest(path string, docType constants.DocType) (extract.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Request{}, fmt.Errorf("read %s: %w", path, err)
	}
	return extract.Request{
		Data:     data,
		MIMEType: constants.MIMEFromExt(filepath.Ext(path)),
		DocType:  docType,
		Filename: filepath.Base(path),
	}, nil
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document for validation", "path", job.Path, "doc_type", job.DocType)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to drain or ctx to end.
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

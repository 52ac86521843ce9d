package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sjperalta/clients-api/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker runs background jobs from a bounded queue on a fixed pool of goroutines
type Worker struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	queue      chan Job
	numWorkers int
	stats      WorkerStats
	statsMu    sync.RWMutex

	// mu guards closed so no job is sent on the queue after it is closed
	mu     sync.RWMutex
	closed bool
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	DroppedJobs   int64 `json:"dropped_jobs"`
	QueueLength   int   `json:"queue_length"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		ctx:        ctx,
		cancel:     cancel,
		queue:      make(chan Job, 100),
		numWorkers: numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	return w
}

// Enqueue adds a job to be processed by the worker pool. When the queue is
// full the job runs on the caller's goroutine. Jobs enqueued after Shutdown
// are dropped and Enqueue reports false.
func (w *Worker) Enqueue(job Job) bool {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		logger.Warn("[Worker] Job dropped, worker is shut down")
		w.trackJobDropped()
		return false
	}
	select {
	case w.queue <- job:
		w.mu.RUnlock()
		return true
	default:
	}
	w.mu.RUnlock()

	logger.Warn("[Worker] Queue full, running job synchronously")
	w.run("sync", job)
	return true
}

// process handles jobs from the queue until shutdown; queued jobs are drained first
func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for job := range w.queue {
		start := time.Now()
		if w.run("pool", job) {
			logger.Debug("[Worker] Job completed", "worker", workerID, "duration", time.Since(start))
		}
	}
}

// run executes job with panic recovery and reports whether it succeeded
func (w *Worker) run(kind string, job Job) (ok bool) {
	w.trackJobStart()
	defer w.trackJobEnd()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Worker] Job panic", "kind", kind, "panic", r)
			w.trackJobFailure()
			ok = false
		}
	}()

	if err := job(w.ctx); err != nil {
		logger.Error("[Worker] Job error", "kind", kind, "error", err)
		w.trackJobFailure()
		return false
	}
	return true
}

// Shutdown stops accepting jobs, drains the queue and waits for running jobs,
// then cancels the worker context. It is safe to call more than once.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
	w.cancel()
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.numWorkers
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

// CompletedJobs counts every finished job; FailedJobs is the subset that failed
func (w *Worker) trackJobEnd() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
}

func (w *Worker) trackJobFailure() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.FailedJobs++
}

func (w *Worker) trackJobDropped() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.DroppedJobs++
}

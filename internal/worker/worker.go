package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/verdandi/internal/email"
	"github.com/dukerupert/verdandi/internal/jobs"
	"github.com/dukerupert/verdandi/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// Queue name to process (empty string = all queues)
	Queue string

	// ShutdownTimeout bounds how long Start waits for in-flight jobs.
	ShutdownTimeout time.Duration
}

// Worker processes background jobs
type Worker struct {
	config       Config
	queue        jobs.Queue
	emailService *email.Service
	logger       *slog.Logger

	inflight sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(queue jobs.Queue, emailService *email.Service, config Config, logger *slog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config:       config,
		queue:        queue,
		emailService: emailService,
		logger:       logger.With("worker_id", config.WorkerID),
	}
}

// Start begins processing jobs until the context is cancelled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"queue", w.config.Queue,
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.config.MaxConcurrency)

	// Jobs keep running on their own context so shutdown does not abort a
	// half-sent email; ShutdownTimeout caps the wait.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			w.drain(cancelJobs)
			return ctx.Err()

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				w.inflight.Add(1)
				go func() {
					defer w.inflight.Done()
					defer func() { <-sem }()
					w.claimAndProcess(jobCtx)
				}()
			default:
				// At max concurrency, skip this poll
			}
		}
	}
}

func (w *Worker) drain(cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("shutdown timeout reached, cancelling in-flight jobs")
		cancel()
		<-done
	}
}

// claimAndProcess claims and processes a single job. It reports whether a
// job was found.
func (w *Worker) claimAndProcess(ctx context.Context) bool {
	job, err := w.queue.ClaimNext(ctx, w.config.WorkerID, w.config.Queue)
	if err != nil {
		w.logger.Error("failed to claim job", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	logger := w.logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	logger.Info("processing job")

	start := time.Now()
	err = w.processJob(ctx, job, logger)
	if telemetry.Business != nil {
		telemetry.Business.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		logger.Error("job failed", "error", err)
		w.record(job.JobType, "failed")
		telemetry.CaptureError(ctx, err,
			map[string]string{"job_type": job.JobType},
			map[string]interface{}{"job_id": job.ID, "attempt": job.Attempts})
		if ferr := w.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
			logger.Error("failed to record job failure", "error", ferr)
		}
		return true
	}

	logger.Info("job completed", "duration", time.Since(start))
	w.record(job.JobType, "completed")
	if cerr := w.queue.Complete(ctx, job.ID); cerr != nil {
		logger.Error("failed to complete job", "error", cerr)
	}
	return true
}

func (w *Worker) record(jobType, result string) {
	if telemetry.Business != nil {
		telemetry.Business.JobsProcessed.WithLabelValues(jobType, result).Inc()
	}
}

// processJob processes a single job
func (w *Worker) processJob(ctx context.Context, job *jobs.Job, logger *slog.Logger) error {
	timeout := time.Duration(job.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch {
	case jobs.IsEmailJob(job.JobType):
		if w.emailService == nil {
			return fmt.Errorf("no email service configured for %s", job.JobType)
		}
		return jobs.ProcessEmailJob(jobCtx, job, w.emailService)

	case jobs.IsCleanupJob(job.JobType):
		res, err := jobs.ProcessCleanupJob(jobCtx, job, w.queue)
		if err != nil {
			return err
		}
		logger.Info("deleted finished jobs", "count", res.JobsDeleted)
		return nil
	}

	return fmt.Errorf("unknown job type: %s", job.JobType)
}

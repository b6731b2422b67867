package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pdfrefine/pdfrefine/internal/chunker"
	"github.com/pdfrefine/pdfrefine/internal/config"
	"github.com/pdfrefine/pdfrefine/internal/engine"
	"github.com/pdfrefine/pdfrefine/internal/enhance"
)

// ErrQueueFull is returned by Submit when the job queue is at capacity.
var ErrQueueFull = errors.New("pipeline: job queue is full")

// Service owns the job queue, the worker pool draining it, and the job
// store consulted by the API layer.
type Service struct {
	cfg    config.Config
	runner *Runner
	jobs   *JobStore
	queue  chan *Job
	log    *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewService builds a service around the given enhancer.
func NewService(cfg config.Config, enh enhance.Enhancer, log *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		runner: NewRunner(enh, cfg.MaxFileBytes(), log),
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		log:    log,
	}
}

// NewServiceWithRunner is NewService with an injected runner, for tests.
func NewServiceWithRunner(cfg config.Config, runner *Runner, log *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		runner: runner,
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		log:    log,
	}
}

// Start launches the job workers and the store cleanup loop.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.cfg.JobWorkers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(ctx, id)
		}(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels the workers and waits for in-flight jobs to settle.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Submit registers a job and queues it for processing.
func (s *Service) Submit(job *Job) error {
	select {
	case s.queue <- job:
		s.jobs.Put(job)
		s.log.Info("job queued", "job_id", job.ID, "filename", job.Filename, "queue_depth", len(s.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// GetJob looks up a job by ID; nil when unknown or expired.
func (s *Service) GetJob(id string) *Job {
	return s.jobs.Get(id)
}

// CancelJob requests cancellation of a job. Reports whether the job was
// found.
func (s *Service) CancelJob(id string) bool {
	job := s.jobs.Get(id)
	if job == nil {
		return false
	}
	job.Cancel()
	return true
}

// QueueDepth reports how many jobs are waiting for a worker.
func (s *Service) QueueDepth() int {
	return len(s.queue)
}

func (s *Service) workerLoop(ctx context.Context, id int) {
	log := s.log.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.queue:
			if !ok {
				return
			}
			s.process(ctx, job, log)
		}
	}
}

// process runs one job end to end and records its terminal state.
func (s *Service) process(ctx context.Context, job *Job, log *slog.Logger) {
	start := time.Now()
	log.Info("job started", "job_id", job.ID, "filename", job.Filename)

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	job.setCancel(cancel)

	defer os.Remove(job.sourcePath)

	opts := RunOptions{
		Password: job.password,
		Chunk: chunker.Options{
			MaxChunkSize: s.cfg.ChunkMaxChars,
			MinChunkSize: s.cfg.ChunkMinChars,
		},
		Enhance: job.enhanceOpt,
		Engine: engine.Config{
			Workers:     s.cfg.WorkerCount,
			MaxRetries:  s.cfg.MaxRetries,
			BaseBackoff: s.cfg.RetryBaseDelay,
			MaxBackoff:  s.cfg.RetryMaxDelay,
			CallTimeout: s.cfg.CallTimeout,
			Cooldown:    s.cfg.RateLimitCooldown,
		},
		OnPhase: func(phase string) {
			job.SetStatus(StatusProcessing, phase)
		},
		OnProgress: func(completed, total int) {
			job.SetChunkProgress(completed, total)
		},
	}

	result, err := s.runner.Run(jobCtx, job.sourcePath, opts)
	if err != nil {
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "failed")
		log.Error("job failed", "job_id", job.ID, "error", err, "duration", time.Since(start))
		return
	}

	job.SetResult(result)
	status := StatusCompleted
	switch {
	case result.Canceled:
		status = StatusCanceled
	case len(result.FailedRanges) > 0:
		for _, fr := range result.FailedRanges {
			job.AddError(fmt.Sprintf("chunk bytes %d-%d not enhanced: %s", fr.Start, fr.End, fr.Reason))
		}
		status = StatusPartial
	}
	job.SetStatus(status, "done")
	log.Info("job finished",
		"job_id", job.ID,
		"status", status,
		"enhanced", result.Stats.Enhanced,
		"failed", result.Stats.Failed,
		"duration", time.Since(start),
	)
}

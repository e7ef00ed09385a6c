package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cutlist/cutlist-agent/internal/cutjoin"
	"github.com/cutlist/cutlist-agent/internal/logging"
	"github.com/cutlist/cutlist-agent/internal/media"
)

// JobObserver is told about save job transitions. Calls happen on the runner
// goroutine and must not block.
type JobObserver interface {
	JobStarted(job *Job)
	JobProgress(jobID string, progress int, label string)
	JobFinished(job *Job)
}

type activeJob struct {
	id     string
	cancel context.CancelFunc
}

// Runner executes queued save jobs one at a time.
type Runner struct {
	manager      *Manager
	repo         Repository
	orchestrator *cutjoin.Orchestrator
	doctor       *media.CachedDoctor
	logger       *slog.Logger
	pollInterval time.Duration
	running      atomic.Bool
	paused       atomic.Bool
	wake         chan struct{}

	mu        sync.Mutex
	active    *activeJob
	observers []JobObserver
}

func NewRunner(manager *Manager, repo Repository, backend cutjoin.Backend, doctor *media.CachedDoctor, logger *slog.Logger) *Runner {
	r := &Runner{
		manager:      manager,
		repo:         repo,
		orchestrator: cutjoin.New(backend, logger),
		doctor:       doctor,
		logger:       logging.WithComponent(logger, "runner"),
		pollInterval: 5 * time.Second,
		wake:         make(chan struct{}, 1),
	}
	manager.SetWake(r.Wake)
	return r
}

func (r *Runner) AddObserver(o JobObserver) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
		case <-r.wake:
		}
		for !r.paused.Load() && ctx.Err() == nil && r.processNextJob(ctx) {
		}
	}
}

// Wake makes the runner look for pending jobs without waiting for the next tick.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
	r.Wake()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// ActiveJobID returns the job being executed, or "".
func (r *Runner) ActiveJobID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.id
}

// Cancel stops the running job or withdraws a pending one.
func (r *Runner) Cancel(ctx context.Context, jobID string) error {
	r.mu.Lock()
	if r.active != nil && r.active.id == jobID {
		r.logger.Info("cancelling running job", "job_id", jobID)
		r.active.cancel()
		r.mu.Unlock()
		return nil
	}
	err := r.cancelPending(ctx, jobID)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.logger.Info("pending job cancelled", "job_id", jobID)
	r.notifyFinished(ctx, jobID)
	return nil
}

// cancelPending must be called with r.mu held.
func (r *Runner) cancelPending(ctx context.Context, jobID string) error {
	job, err := r.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrJobNotFound
	}
	if job.Status != JobStatusPending {
		return ErrJobNotRunning
	}
	return r.repo.UpdateJobStatus(ctx, jobID, JobStatusCancelled, "cancelled before start")
}

// processNextJob runs the oldest pending job and reports whether there was one.
func (r *Runner) processNextJob(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	job := jobs[0]
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.active = &activeJob{id: job.ID, cancel: cancel}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active = nil
		r.mu.Unlock()
	}()

	// A Cancel between listing and registering leaves the job cancelled.
	current, err := r.repo.GetJob(ctx, job.ID)
	if err != nil || current == nil || current.Status != JobStatusPending {
		return true
	}

	logger := logging.WithJobID(r.logger, job.ID)
	logger.Info("processing job", "type", job.Type)

	switch job.Type {
	case JobTypeSave:
		r.runSave(ctx, jobCtx, current, logger)
	default:
		logger.Warn("unknown job type", "type", job.Type)
		r.finish(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
	return true
}

func (r *Runner) runSave(ctx, jobCtx context.Context, job *Job, logger *slog.Logger) {
	if err := r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, ""); err != nil {
		logger.Error("failed to mark job running", "error", err)
		return
	}
	job.Status = JobStatusRunning
	r.notify(func(o JobObserver) { o.JobStarted(job) })

	if r.doctor != nil {
		caps, err := r.doctor.Get(ctx)
		if err != nil {
			r.finish(ctx, job.ID, JobStatusFailed, fmt.Sprintf("media tools probe failed: %v", err))
			return
		}
		if !caps.AllOK() {
			r.finish(ctx, job.ID, JobStatusFailed, "ffmpeg or ffprobe is not available")
			return
		}
	}

	clips, rec, err := r.manager.saveTarget(ctx, job.SessionID)
	if err != nil {
		r.finish(ctx, job.ID, JobStatusFailed, err.Error())
		return
	}

	obs := cutjoin.ObserverFunc(func(step, total int, label string) {
		progress := 100
		if total > 0 {
			progress = step * 100 / total
		}
		if err := r.repo.UpdateJobProgress(ctx, job.ID, progress, label); err != nil {
			logger.Warn("failed to record progress", "error", err)
		}
		r.notify(func(o JobObserver) { o.JobProgress(job.ID, progress, label) })
	})

	out, err := r.orchestrator.Execute(jobCtx, cutjoin.Request{Source: rec.MediaPath, Dest: job.DestPath}, clips, obs)
	switch {
	case errors.Is(err, cutjoin.ErrCancelled):
		r.finish(ctx, job.ID, JobStatusCancelled, "cancelled by user")
		return
	case err != nil:
		logger.Error("save failed", "error", err)
		r.finish(ctx, job.ID, JobStatusFailed, err.Error())
		return
	}

	if err := r.repo.CompleteJob(ctx, job.ID, out); err != nil {
		logger.Error("failed to mark job completed", "error", err)
	}
	size := "unknown size"
	if info, err := os.Stat(out); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	logger.Info("save job completed", "output", logging.SanitizePath(out), "size", size)
	r.notifyFinished(ctx, job.ID)
}

func (r *Runner) finish(ctx context.Context, jobID, status, msg string) {
	if err := r.repo.UpdateJobStatus(ctx, jobID, status, msg); err != nil {
		r.logger.Error("failed to update job status", "job_id", jobID, "status", status, "error", err)
	}
	r.notifyFinished(ctx, jobID)
}

func (r *Runner) notifyFinished(ctx context.Context, jobID string) {
	job, err := r.repo.GetJob(ctx, jobID)
	if err != nil || job == nil {
		return
	}
	r.notify(func(o JobObserver) { o.JobFinished(job) })
}

func (r *Runner) notify(fn func(JobObserver)) {
	r.mu.Lock()
	observers := append([]JobObserver(nil), r.observers...)
	r.mu.Unlock()
	for _, o := range observers {
		fn(o)
	}
}

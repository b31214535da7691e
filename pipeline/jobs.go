package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/leadscout"
)

// JobFunc is the body of a job. report records a progress line.
type JobFunc func(ctx context.Context, report func(progress string)) error

// Jobs runs long operations in the background and records their lifecycle
// in a JobService so callers can poll for status.
type Jobs struct {
	store  leadscout.JobService
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewJobs creates a job runner. Jobs outlive the request that started them
// and end when Close is called.
func NewJobs(store leadscout.JobService, logger *slog.Logger) *Jobs {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Jobs{
		store:   store,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]context.CancelFunc),
	}
}

// Start creates a pending job and runs fn in the background.
func (j *Jobs) Start(ctx context.Context, kind leadscout.JobKind, target string, fn JobFunc) (*leadscout.Job, error) {
	if j.ctx.Err() != nil {
		return nil, leadscout.Errorf(leadscout.ECONFLICT, "job runner closed")
	}
	job := &leadscout.Job{Kind: kind, Target: target}
	if err := j.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(j.ctx)
	j.mu.Lock()
	j.running[job.ID] = cancel
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer func() {
			j.mu.Lock()
			delete(j.running, job.ID)
			j.mu.Unlock()
			cancel()
		}()
		j.run(runCtx, job, fn)
	}()
	return job, nil
}

func (j *Jobs) run(ctx context.Context, job *leadscout.Job, fn JobFunc) {
	logger := j.logger.With("job", job.ID, "kind", job.Kind, "target", job.Target)
	saveCtx := context.WithoutCancel(ctx)

	running := leadscout.JobRunning
	started := time.Now().UTC()
	if _, err := j.store.UpdateJob(saveCtx, job.ID, leadscout.JobUpdate{Status: &running, StartedAt: &started}); err != nil {
		logger.Error("job start not recorded", "error", err)
	}
	logger.Info("job started")

	err := fn(ctx, func(progress string) {
		if _, err := j.store.UpdateJob(saveCtx, job.ID, leadscout.JobUpdate{Progress: &progress}); err != nil {
			logger.Warn("job progress not recorded", "error", err)
		}
	})

	status := leadscout.JobSucceeded
	var msg string
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = leadscout.JobCanceled
		msg = "canceled"
	default:
		status = leadscout.JobFailed
		msg = leadscout.ErrorMessage(err)
	}
	finished := time.Now().UTC()
	upd := leadscout.JobUpdate{Status: &status, FinishedAt: &finished}
	if msg != "" {
		upd.Error = &msg
	}
	if _, uerr := j.store.UpdateJob(saveCtx, job.ID, upd); uerr != nil {
		logger.Error("job result not recorded", "error", uerr)
	}
	logger.Info("job finished", "status", status, "duration", finished.Sub(started), "error", msg)
}

// Cancel stops a running job. Returns ENOTFOUND if the job is not running.
func (j *Jobs) Cancel(id string) error {
	j.mu.Lock()
	cancel, ok := j.running[id]
	j.mu.Unlock()
	if !ok {
		return leadscout.Errorf(leadscout.ENOTFOUND, "job %q is not running", id)
	}
	cancel()
	return nil
}

// Wait blocks until every started job has finished.
func (j *Jobs) Wait() {
	j.wg.Wait()
}

// Close cancels every running job and waits for them to record their end.
func (j *Jobs) Close() error {
	j.cancel()
	j.wg.Wait()
	return nil
}
